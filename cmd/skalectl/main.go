// Command skalectl exercises the skale engine end to end against the
// in-process local runtime: it reads words from a text file (or generates
// a small built-in sample if none is given), counts occurrences, and
// prints the top results — the one pipeline every narrow/wide/shuffle/
// action code path in the engine gets touched by.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	skale "github.com/shankscript/skale-engine"
	"github.com/shankscript/skale-engine/localfs"
	"github.com/shankscript/skale-engine/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		partitions int
		top        int
	)

	cmd := &cobra.Command{
		Use:   "skalectl [file]",
		Short: "Run a word-count job against a text file with the skale engine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWordCount(cmd.Context(), args, partitions, top)
		},
	}
	cmd.Flags().IntVar(&partitions, "partitions", 4, "number of output partitions for the shuffle stage")
	cmd.Flags().IntVar(&top, "top", 10, "number of top words to print")
	return cmd
}

func runWordCount(ctx context.Context, args []string, partitions, top int) error {
	eng := skale.NewEngine(skale.DefaultConfig())

	var lines *skale.Dataset
	if len(args) == 1 {
		lines = skale.NewSourceDataset(eng, &source.Text{
			FS:   localfs.New(),
			Path: args[0],
			N:    partitions,
			Host: "local",
		})
	} else {
		lines = skale.Parallelize(eng, sampleLines, partitions)
	}

	words := skale.FlatMap(lines, func(line string) []string {
		return strings.Fields(line)
	})
	pairs := skale.Map(words, func(w string) skale.Pair {
		return skale.Pair{Key: strings.ToLower(w), Value: 1}
	})
	counts := skale.ReduceByKey[string, int](pairs, func(a, b int) int { return a + b }, partitions)

	results, err := skale.CollectTyped[skale.Pair](ctx, eng, counts)
	if err != nil {
		return fmt.Errorf("skalectl: %w", err)
	}

	topResults, err := skale.Top[skale.Pair](ctx, eng, counts, top)
	if err != nil {
		return fmt.Errorf("skalectl: %w", err)
	}

	fmt.Fprintf(os.Stdout, "%d distinct words\n", len(results))
	fmt.Fprintf(os.Stdout, "last %d results, reverse partition order:\n", len(topResults))
	for _, p := range topResults {
		fmt.Fprintf(os.Stdout, "%-20s %v\n", p.Key, p.Value)
	}
	return nil
}

var sampleLines = []string{
	"the quick brown fox jumps over the lazy dog",
	"the dog barks at the fox",
	"quick quick brown fox",
}
