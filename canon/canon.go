// Package canon implements the canonical encoder used to turn arbitrary
// dataset keys and records into a deterministic byte/string form that every
// worker computes identically. It backs the hash partitioner's routing hash
// and the map-side and reduce-side shuffle-buffer keys. Shuffle records
// themselves are written as JSON (see package shuffle), since this encoding
// has no decoder.
//
// The format distinguishes integers from floats, length-prefixes strings so
// that no delimiter collision is possible, and sorts map entries by key so
// that {1:2} and {2:1} serialize differently while two workers holding the
// same logical map always agree on the bytes.
package canon

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Key returns the canonical string form of v, suitable for use as a Go map
// key in shuffle-side accumulator buffers and for hashing by the
// partitioners.
func Key(v interface{}) string {
	var b strings.Builder
	encode(&b, v)
	return b.String()
}

// encode writes the canonical form of v into b. The grammar is:
//
//	nil    -> "n"
//	bool   -> "b0" | "b1"
//	int*   -> "i<decimal>"
//	uint*  -> "u<decimal>"
//	float* -> "f<bits-as-decimal>" (NaN/Inf rendered via strconv so they
//	          stay distinct from any finite value)
//	string -> "s<len>:<bytes>"
//	slice/array -> "l<n>[" elem... "]"
//	map    -> "m<n>{" key=value sorted by encoded key "}"
//	struct -> "t{" field=value in declaration order "}"
//	other  -> "x<fmt.Sprintf %#v>"
func encode(b *strings.Builder, v interface{}) {
	if v == nil {
		b.WriteString("n")
		return
	}

	switch x := v.(type) {
	case bool:
		if x {
			b.WriteString("b1")
		} else {
			b.WriteString("b0")
		}
		return
	case string:
		encodeString(b, x)
		return
	case int:
		encodeInt(b, int64(x))
		return
	case int8:
		encodeInt(b, int64(x))
		return
	case int16:
		encodeInt(b, int64(x))
		return
	case int32:
		encodeInt(b, int64(x))
		return
	case int64:
		encodeInt(b, x)
		return
	case uint:
		encodeUint(b, uint64(x))
		return
	case uint8:
		encodeUint(b, uint64(x))
		return
	case uint16:
		encodeUint(b, uint64(x))
		return
	case uint32:
		encodeUint(b, uint64(x))
		return
	case uint64:
		encodeUint(b, x)
		return
	case float32:
		encodeFloat(b, float64(x))
		return
	case float64:
		encodeFloat(b, x)
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		encodeSeq(b, rv)
	case reflect.Map:
		encodeMap(b, rv)
	case reflect.Struct:
		encodeStruct(b, rv)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("n")
			return
		}
		encode(b, rv.Elem().Interface())
	default:
		fmt.Fprintf(b, "x%#v", v)
	}
}

func encodeString(b *strings.Builder, s string) {
	b.WriteByte('s')
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func encodeInt(b *strings.Builder, n int64) {
	b.WriteByte('i')
	b.WriteString(strconv.FormatInt(n, 10))
}

func encodeUint(b *strings.Builder, n uint64) {
	b.WriteByte('u')
	b.WriteString(strconv.FormatUint(n, 10))
}

func encodeFloat(b *strings.Builder, f float64) {
	b.WriteByte('f')
	b.WriteString(strconv.FormatUint(math.Float64bits(f), 10))
}

func encodeSeq(b *strings.Builder, rv reflect.Value) {
	n := rv.Len()
	b.WriteByte('l')
	b.WriteString(strconv.Itoa(n))
	b.WriteByte('[')
	for i := 0; i < n; i++ {
		encode(b, rv.Index(i).Interface())
		b.WriteByte(',')
	}
	b.WriteByte(']')
}

func encodeMap(b *strings.Builder, rv reflect.Value) {
	type kv struct {
		k, v string
	}
	entries := make([]kv, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, kv{Key(iter.Key().Interface()), Key(iter.Value().Interface())})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })

	b.WriteByte('m')
	b.WriteString(strconv.Itoa(len(entries)))
	b.WriteByte('{')
	for _, e := range entries {
		b.WriteString(e.k)
		b.WriteByte('=')
		b.WriteString(e.v)
		b.WriteByte(',')
	}
	b.WriteByte('}')
}

func encodeStruct(b *strings.Builder, rv reflect.Value) {
	t := rv.Type()
	b.WriteString("t{")
	for i := 0; i < rv.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		encode(b, rv.Field(i).Interface())
		b.WriteByte(',')
	}
	b.WriteByte('}')
}
