package skale

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/shankscript/skale-engine/canon"
)

// coerceElem repairs a value that crossed the shuffle's JSON wire encoding
// (see shuffle/shuffle.go / DESIGN.md "shuffle wire format") back into a
// shape assignable to want, so a reduce-side combOp/seqOp type assertion
// against a concrete accumulator type (int, *int, []string, ...) doesn't
// panic on the float64/map[string]interface{} shapes JSON decode produces.
// Values already assignable (string, bool, interface{}-shaped accumulators)
// pass through untouched.
func coerceElem(want reflect.Type, v Elem) Elem {
	if v == nil {
		return reflect.Zero(want).Interface()
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return v
	}
	switch want.Kind() {
	case reflect.Ptr:
		inner := coerceElem(want.Elem(), v)
		p := reflect.New(want.Elem())
		p.Elem().Set(reflect.ValueOf(inner))
		return p.Interface()
	case reflect.Slice:
		if rv.Kind() != reflect.Slice {
			break
		}
		out := reflect.MakeSlice(want, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := coerceElem(want.Elem(), rv.Index(i).Interface())
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if rv.Type().ConvertibleTo(want) {
			return rv.Convert(want).Interface()
		}
	}
	return v
}

// wideBase holds the bits every wide operator shares: its own name and a
// cached output width, settled the first time NumOutputPartitions runs so
// later ReadAndAggregate calls (which need e.g. Cartesian's column width)
// can see it without recomputing from parentWidths.
type wideBase struct {
	opName string

	mu     sync.Mutex
	widths []int
}

func (w *wideBase) Name() string { return w.opName }

func (w *wideBase) remember(widths []int) {
	w.mu.Lock()
	w.widths = widths
	w.mu.Unlock()
}

func (w *wideBase) parentWidths() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.widths
}

// --- AggregateByKey / ReduceByKey / GroupByKey -----------------------------

// aggregateByKeyOp implements a map-side pre-combine (seqOp folds raw
// values into a partial accumulator per key, locally, before the shuffle)
// followed by a reduce-side merge (combOp folds partial accumulators
// together), the classic combiner shape spec §4.3 describes for
// AggregateByKey.
type aggregateByKeyOp struct {
	wideBase
	zero   func() Elem
	seqOp  func(acc, v Elem) Elem
	combOp func(a, b Elem) Elem
	n      int
	aType  reflect.Type
}

func (a *aggregateByKeyOp) NumOutputPartitions(parentWidths []int) int {
	a.remember(parentWidths)
	if a.n > 0 {
		return a.n
	}
	if len(parentWidths) > 0 {
		return parentWidths[0]
	}
	return 1
}

func (a *aggregateByKeyOp) SpillToDisk(ctx context.Context, sw *ShuffleWriteContext) error {
	acc := make(map[string]Elem)
	keys := make(map[string]Elem)
	for {
		e, ok, err := sw.Input()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		p := e.(Pair)
		k := canon.Key(p.Key)
		cur, seen := acc[k]
		if !seen {
			cur = a.zero()
			keys[k] = p.Key
		}
		acc[k] = a.seqOp(cur, p.Value)
	}
	for k, v := range acc {
		pid := sw.Partitioner.PartitionIndexOf(keys[k])
		if err := sw.Writer.Write(pid, Pair{Key: keys[k], Value: v}); err != nil {
			return err
		}
	}
	return nil
}

func (a *aggregateByKeyOp) ReadAndAggregate(ctx context.Context, sr *ShuffleReadContext) ([]Elem, error) {
	acc := make(map[string]Elem)
	keys := make(map[string]Elem)
	err := sr.Reader(0).Each(ctx, func(payload interface{}) error {
		p := payload.(map[string]interface{})
		k, v := decodePairPayload(p)
		ck := canon.Key(k)
		cur, seen := acc[ck]
		if !seen {
			cur = a.zero()
			keys[ck] = k
		}
		acc[ck] = a.combOp(cur, coerceElem(a.aType, v))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortedPairs(keys, acc), nil
}

// decodePairPayload recovers a Pair{Key,Value} round-tripped through JSON,
// where Key/Value arrive as generic interface{} (numbers as float64,
// nested Pairs as map[string]interface{}) because shuffle records cross a
// JSON encode/decode boundary (shuffle.Record). Canonical routing/merge
// keys are computed from canon.Key, which is itself forgiving of this
// representation, so merge correctness does not depend on recovering the
// original Go type, only the original key identity and carried value.
func decodePairPayload(m map[string]interface{}) (key, value Elem) {
	return m["Key"], m["Value"]
}

func sortedPairs(keys map[string]Elem, acc map[string]Elem) []Elem {
	order := make([]string, 0, len(keys))
	for k := range keys {
		order = append(order, k)
	}
	sort.Strings(order)
	out := make([]Elem, 0, len(order))
	for _, k := range order {
		out = append(out, Pair{Key: keys[k], Value: acc[k]})
	}
	return out
}

// AggregateByKey groups by Key and folds each key's Values with seqOp
// (map-side, per partition) then combOp (reduce-side, across partitions),
// starting from zero() for every key (spec §4.3).
func AggregateByKey[K comparable, V, A any](d *Dataset, zero func() A, seqOp func(A, V) A, combOp func(A, A) A, numPartitions int) *Dataset {
	op := &aggregateByKeyOp{
		wideBase: wideBase{opName: "aggregateByKey"},
		zero:     func() Elem { return zero() },
		seqOp:    func(acc, v Elem) Elem { return seqOp(acc.(A), v.(V)) },
		combOp:   func(a, b Elem) Elem { return combOp(a.(A), b.(A)) },
		n:        numPartitions,
		aType:    reflect.TypeOf((*A)(nil)).Elem(),
	}
	return newDataset(d.engine, KindWide, []*Dataset{d}, op, numPartitions)
}

// ReduceByKey is AggregateByKey specialized to a single associative,
// commutative reducer, using *V so "no value yet" is representable
// without needing V's zero value to double as a sentinel (spec §4.3
// sugar).
func ReduceByKey[K comparable, V any](d *Dataset, reduce func(V, V) V, numPartitions int) *Dataset {
	fold := func(acc *V, v V) *V {
		if acc == nil {
			cp := v
			return &cp
		}
		merged := reduce(*acc, v)
		return &merged
	}
	ds := AggregateByKey[K, V, *V](d,
		func() *V { return nil },
		fold,
		func(a, b *V) *V {
			if a == nil {
				return b
			}
			if b == nil {
				return a
			}
			return fold(a, *b)
		},
		numPartitions)
	return MapValues(ds, func(acc *V) V { return *acc })
}

// GroupByKey collects every Value under each Key into a slice, preserving
// no particular intra-key order across map tasks (spec §4.3 sugar).
func GroupByKey[K comparable, V any](d *Dataset, numPartitions int) *Dataset {
	return AggregateByKey[K, V, []V](d,
		func() []V { return nil },
		func(acc []V, v V) []V { return append(acc, v) },
		func(a, b []V) []V { return append(a, b...) },
		numPartitions)
}

// --- CoGroup ---------------------------------------------------------------

// coGroupOp groups two parent datasets by Key, producing Pair{Key,
// Value: [2][]Elem{leftValues, rightValues}} per key (spec §4.3).
type coGroupOp struct {
	wideBase
	n int
}

func (c *coGroupOp) NumOutputPartitions(parentWidths []int) int {
	c.remember(parentWidths)
	if c.n > 0 {
		return c.n
	}
	if len(parentWidths) > 0 {
		return parentWidths[0]
	}
	return 1
}

func (c *coGroupOp) SpillToDisk(ctx context.Context, sw *ShuffleWriteContext) error {
	for {
		e, ok, err := sw.Input()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		p := e.(Pair)
		pid := sw.Partitioner.PartitionIndexOf(p.Key)
		if err := sw.Writer.Write(pid, taggedPair{Side: sw.ParentIndex, Key: p.Key, Value: p.Value}); err != nil {
			return err
		}
	}
}

type taggedPair struct {
	Side  int `json:"Side"`
	Key   Elem
	Value Elem
}

func (c *coGroupOp) ReadAndAggregate(ctx context.Context, sr *ShuffleReadContext) ([]Elem, error) {
	type bucket struct {
		key      Elem
		left     []Elem
		right    []Elem
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for side, parentIdx := range []int{0, 1} {
		_ = side
		err := sr.Reader(parentIdx).Each(ctx, func(payload interface{}) error {
			m := payload.(map[string]interface{})
			sideV, _ := m["Side"].(float64)
			key := m["Key"]
			value := m["Value"]
			k := canon.Key(key)
			b, seen := buckets[k]
			if !seen {
				b = &bucket{key: key}
				buckets[k] = b
				order = append(order, k)
			}
			if int(sideV) == 0 {
				b.left = append(b.left, value)
			} else {
				b.right = append(b.right, value)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(order)
	out := make([]Elem, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		out = append(out, Pair{Key: b.key, Value: [2][]Elem{b.left, b.right}})
	}
	return out, nil
}

// CoGroup groups two datasets of Pairs by Key, yielding one output Pair
// per distinct key whose Value is a [2][]Elem of that key's left- and
// right-side values (spec §4.3).
func CoGroup(left, right *Dataset, numPartitions int) *Dataset {
	op := &coGroupOp{wideBase: wideBase{opName: "coGroup"}, n: numPartitions}
	return newDataset(left.engine, KindWide, []*Dataset{left, right}, op, numPartitions)
}

// --- SortBy / SortByKey -----------------------------------------------------

// sortOp routes elements through a RangePartitioner so that output
// partition i holds only elements less than output partition i+1's
// (spec §4.1/§4.3), then sorts each output partition locally.
type sortOp struct {
	wideBase
	keyFn func(Elem) Elem
	less  func(a, b Elem) bool
}

func (s *sortOp) NumOutputPartitions(parentWidths []int) int {
	s.remember(parentWidths)
	if len(parentWidths) > 0 {
		return parentWidths[0]
	}
	return 1
}

func (s *sortOp) SpillToDisk(ctx context.Context, sw *ShuffleWriteContext) error {
	for {
		e, ok, err := sw.Input()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pid := sw.Partitioner.PartitionIndexOf(s.keyFn(e))
		if err := sw.Writer.Write(pid, e); err != nil {
			return err
		}
	}
}

func (s *sortOp) ReadAndAggregate(ctx context.Context, sr *ShuffleReadContext) ([]Elem, error) {
	var out []Elem
	err := sr.Reader(0).Each(ctx, func(payload interface{}) error {
		out = append(out, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return s.less(s.keyFn(out[i]), s.keyFn(out[j])) })
	return out, nil
}

// SortBy orders d's elements ascending by keyFn across numPartitions
// output partitions, using a range partitioner sampled from d so that
// partition i's elements all sort before partition i+1's (spec §4.3).
func SortBy(ctx context.Context, d *Dataset, keyFn func(Elem) Elem, less func(a, b Elem) bool, numPartitions int) (*Dataset, error) {
	rp, err := NewRangePartitioner(ctx, d.engine, d, numPartitions, keyFn, less)
	if err != nil {
		return nil, fmt.Errorf("sortBy: %w", err)
	}
	op := &sortOp{wideBase: wideBase{opName: "sortBy"}, keyFn: keyFn, less: less}
	ds := newDataset(d.engine, KindWide, []*Dataset{d}, op, rp.NumPartitions())
	ds.setPartitioner(rp)
	return ds, nil
}

// SortByKey is SortBy specialized to Pair elements, ordering by Key.
// pairKey reads e's Key field whether e is still a native Pair (the usual
// pre-shuffle case, and the sampling pass range-partitioning runs against)
// or a Pair that has round-tripped through the shuffle's JSON wire format
// and arrived as a decoded map[string]interface{} (the reduce-side sort
// pass, per the shuffle wire format note in DESIGN.md). The sorted output
// is turned back into Pair elements; their Key and Value keep the shapes
// JSON decoding gave them.
func SortByKey(ctx context.Context, d *Dataset, less func(a, b Elem) bool, numPartitions int) (*Dataset, error) {
	sorted, err := SortBy(ctx, d, pairKey, less, numPartitions)
	if err != nil {
		return nil, err
	}
	return Map(sorted, func(e Elem) Pair {
		if m, ok := e.(map[string]interface{}); ok {
			return Pair{Key: m["Key"], Value: m["Value"]}
		}
		return e.(Pair)
	}), nil
}

func pairKey(e Elem) Elem {
	switch v := e.(type) {
	case Pair:
		return v.Key
	case map[string]interface{}:
		return v["Key"]
	default:
		return nil
	}
}

// --- PartitionBy -------------------------------------------------------------

// partitionByOp reshuffles d's elements across a caller-supplied
// Partitioner without otherwise transforming them — the building block
// behind a keyed join that needs co-partitioned inputs (spec §4.3).
type partitionByOp struct {
	wideBase
	keyFn func(Elem) Elem
}

func (p *partitionByOp) NumOutputPartitions(parentWidths []int) int {
	p.remember(parentWidths)
	return parentWidths[0] // overridden by the dataset's own configured width
}

func (p *partitionByOp) SpillToDisk(ctx context.Context, sw *ShuffleWriteContext) error {
	for {
		e, ok, err := sw.Input()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pid := sw.Partitioner.PartitionIndexOf(p.keyFn(e))
		if err := sw.Writer.Write(pid, e); err != nil {
			return err
		}
	}
}

func (p *partitionByOp) ReadAndAggregate(ctx context.Context, sr *ShuffleReadContext) ([]Elem, error) {
	var out []Elem
	err := sr.Reader(0).Each(ctx, func(payload interface{}) error {
		out = append(out, payload)
		return nil
	})
	return out, err
}

// PartitionBy reshuffles d across partitioner's partitions, keyed by
// keyFn (spec §4.3). For Pair elements pass `func(e Elem) Elem { return
// e.(Pair).Key }`.
func PartitionBy(d *Dataset, keyFn func(Elem) Elem, partitioner Partitioner) *Dataset {
	op := &partitionByOp{wideBase: wideBase{opName: "partitionBy"}, keyFn: keyFn}
	ds := newDataset(d.engine, KindWide, []*Dataset{d}, op, partitioner.NumPartitions())
	ds.setPartitioner(partitioner)
	return ds
}

// --- Cartesian ---------------------------------------------------------------

// cartesianOp pairs every element of its left parent's partition i with
// every element of its right parent's partition j, one output partition
// per (i, j) (spec §4.3). It needs no key-based routing: the map side
// simply broadcasts each upstream partition's contents to the row or
// column of output partitions it participates in.
type cartesianOp struct {
	wideBase
}

func (c *cartesianOp) NumOutputPartitions(parentWidths []int) int {
	c.remember(parentWidths)
	if len(parentWidths) < 2 {
		return 1
	}
	return parentWidths[0] * parentWidths[1]
}

func (c *cartesianOp) SpillToDisk(ctx context.Context, sw *ShuffleWriteContext) error {
	widths := c.parentWidths()
	if len(widths) < 2 {
		return programmerErrorf("cartesian: parent widths not yet known")
	}
	widthA, widthB := widths[0], widths[1]

	var all []Elem
	for {
		e, ok, err := sw.Input()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		all = append(all, e)
	}

	if sw.ParentIndex == 0 {
		// this call is for upstream partition i of the left parent; it
		// contributes to output partitions i*widthB .. i*widthB+widthB-1.
		i := currentUpstream(sw)
		for j := 0; j < widthB; j++ {
			pid := i*widthB + j
			if err := sw.Writer.Write(pid, all); err != nil {
				return err
			}
		}
	} else {
		j := currentUpstream(sw)
		for i := 0; i < widthA; i++ {
			pid := i*widthB + j
			if err := sw.Writer.Write(pid, all); err != nil {
				return err
			}
		}
	}
	return nil
}

// currentUpstream recovers the upstream partition index a SpillToDisk
// call is running for. It is carried in sw.upstreamIdx: ensureSpilled
// sets it before invoking SpillToDisk so Cartesian (the only
// operator that needs to know its own upstream index, not just route by
// key) can read it back.
func currentUpstream(sw *ShuffleWriteContext) int { return sw.upstreamIdx }

func (c *cartesianOp) ReadAndAggregate(ctx context.Context, sr *ShuffleReadContext) ([]Elem, error) {
	var left, right []Elem
	if err := sr.Reader(0).Each(ctx, func(payload interface{}) error {
		left = appendAll(left, payload)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := sr.Reader(1).Each(ctx, func(payload interface{}) error {
		right = appendAll(right, payload)
		return nil
	}); err != nil {
		return nil, err
	}

	out := make([]Elem, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			out = append(out, Pair{Key: l, Value: r})
		}
	}
	return out, nil
}

func appendAll(dst []Elem, payload interface{}) []Elem {
	if s, ok := payload.([]interface{}); ok {
		for _, v := range s {
			dst = append(dst, v)
		}
		return dst
	}
	return append(dst, payload)
}

// Cartesian pairs every element of a with every element of b, producing
// Pair{Key: a-element, Value: b-element} (spec §4.3).
func Cartesian(a, b *Dataset) *Dataset {
	op := &cartesianOp{wideBase: wideBase{opName: "cartesian"}}
	return newDataset(a.engine, KindWide, []*Dataset{a, b}, op, 0)
}

// --- Distinct (supplemented feature, SPEC_FULL.md) --------------------------

// Distinct removes duplicate elements, keeping one representative per
// distinct canon.Key value. Grounded on the teacher's Dedupe[T] keyed
// dedupe idea (dedupe.go), generalized from a time-windowed stream dedupe
// to a whole-dataset dedupe carried out via a shuffle rather than an
// in-memory seen-set, since the dataset may not fit on one worker. The
// surviving elements have crossed the shuffle, so they come back in the
// shapes JSON decoding gives them (numbers as float64).
func Distinct(d *Dataset, numPartitions int) *Dataset {
	keyed := Map(d, func(e Elem) Pair { return Pair{Key: e, Value: struct{}{}} })
	deduped := AggregateByKey[Elem, Elem, Elem](keyed,
		func() Elem { return struct{}{} },
		func(acc Elem, _ Elem) Elem { return acc },
		func(a, _ Elem) Elem { return a },
		numPartitions)
	return Map(deduped, func(p Pair) Elem { return p.Key })
}
