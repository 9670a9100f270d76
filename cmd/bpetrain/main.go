// Command bpetrain trains a byte-pair-encoding vocabulary from a UTF-8 text
// corpus and writes the resulting vocabulary and merge list to output_dir.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vocabforge/bpetrain/internal/trainpipeline"
	"github.com/vocabforge/bpetrain/internal/vocab"
)

var (
	specialTokens []string
	workers       int
	verbose       bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bpetrain input_path vocab_size output_dir",
		Short:         "Train a byte-pair-encoding vocabulary from a text corpus",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTrain,
	}

	cmd.Flags().StringArrayVar(&specialTokens, "special", nil, "special token to add verbatim (repeatable, order preserved)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count for pretokenization and merge fan-out (0 = GOMAXPROCS)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	vocabSize, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("vocab_size: %w", err)
	}
	outputDir := args[2]

	log, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := trainpipeline.Options{
		InputPath:     inputPath,
		VocabSize:     vocabSize,
		SpecialTokens: specialTokens,
		Workers:       workers,
	}

	res, err := trainpipeline.Train(ctx, opts, log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output_dir: %w", err)
	}

	if err := writeResult(outputDir, res); err != nil {
		return err
	}

	log.Info("training complete",
		zap.Int("vocab_size", len(res.Vocab)),
		zap.Int("merges", len(res.Merges)),
		zap.Int("distinct_words", res.NumWords),
		zap.Int("chunks", res.ChunkCount),
	)
	return nil
}

func writeResult(outputDir string, res trainpipeline.Result) error {
	vocabFile, err := os.Create(filepath.Join(outputDir, "vocab.txt"))
	if err != nil {
		return fmt.Errorf("create vocab.txt: %w", err)
	}
	defer vocabFile.Close()
	if err := vocab.Save(vocabFile, vocab.New(res.Vocab)); err != nil {
		return fmt.Errorf("write vocab.txt: %w", err)
	}

	mergesFile, err := os.Create(filepath.Join(outputDir, "merges.txt"))
	if err != nil {
		return fmt.Errorf("create merges.txt: %w", err)
	}
	defer mergesFile.Close()
	if err := vocab.SaveMerges(mergesFile, res.Merges); err != nil {
		return fmt.Errorf("write merges.txt: %w", err)
	}

	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bpetrain: %v\n", err)
		os.Exit(1)
	}
}
