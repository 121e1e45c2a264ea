package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
	"github.com/kirillkom/complaint-analyst/internal/core/usecase"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/chunking"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/corpus"
)

func newSampleCommand(e *env) *cobra.Command {
	var (
		input, output string
		size          int
		seed          int64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw a uniform, seeded sample of complaint rows from a CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size <= 0 {
				size = e.cfg.SampleSize
			}
			if !cmd.Flags().Changed("seed") {
				seed = e.cfg.SampleSeed
			}

			in, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			var stats corpus.SampleStats
			err = writeFile(output, func(w io.Writer) error {
				var err error
				stats, err = corpus.SampleCSV(in, w, size, seed)
				return err
			})
			if err != nil {
				return err
			}
			return e.report(cmd, stats, func(w io.Writer) {
				okColor.Fprint(w, "sampled ")
				fmt.Fprintf(w, "%d of %d rows into %s (seed %d)\n", stats.Kept, stats.Seen, output, seed)
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "complaints CSV export")
	cmd.Flags().StringVar(&output, "output", "complaints_sample.csv", "sampled CSV output")
	cmd.Flags().IntVar(&size, "size", 0, "rows to keep; defaults to SAMPLE_SIZE")
	cmd.Flags().Int64Var(&seed, "seed", corpus.DefaultSampleSeed, "random seed; defaults to SAMPLE_SEED")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newPrepareCommand(e *env) *cobra.Command {
	var (
		input, chunksPath, cleanedPath string
		allProducts                    bool
		chunkSize, overlap, minChars   int
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Clean complaint narratives and split them into JSONL chunk records",
		Long: "Reads a CSV or XLSX export, keeps the target products, normalizes narratives, " +
			"drops short ones and writes overlapping chunk windows as JSON lines.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if chunkSize <= 0 {
				chunkSize = e.cfg.ChunkSize
			}
			if !cmd.Flags().Changed("overlap") {
				overlap = e.cfg.ChunkOverlap
			}
			if !cmd.Flags().Changed("min-chars") {
				minChars = e.cfg.MinTextChars
			}
			preparer := usecase.NewCorpusPreparer(chunking.NewSplitter(chunkSize, overlap), usecase.PrepareOptions{
				MinTextChars: minChars,
				AllProducts:  allProducts,
			})

			var sink ports.ComplaintSink
			var cleaned *corpus.CleanedCSVWriter
			if cleanedPath != "" {
				f, err := createFile(cleanedPath)
				if err != nil {
					return err
				}
				defer f.Close()
				cleaned = corpus.NewCleanedCSVWriter(f)
				sink = cleaned
			}

			var stats usecase.PrepareStats
			err := writeFile(chunksPath, func(cw io.Writer) error {
				chunks := corpus.NewChunkWriter(cw)
				var err error
				stats, err = preparer.Prepare(cmd.Context(), corpus.ReadFile(input), chunks, sink)
				if err != nil {
					return err
				}
				return chunks.Flush()
			})
			if err == nil && cleaned != nil {
				err = cleaned.Flush()
			}
			if err != nil {
				return err
			}
			return e.report(cmd, stats, func(w io.Writer) {
				headingColor.Fprintln(w, "corpus prepared")
				fmt.Fprintf(w, "  rows read          %d\n", stats.Rows)
				fmt.Fprintf(w, "  off target         %d\n", stats.OffTarget)
				fmt.Fprintf(w, "  missing narrative  %d\n", stats.MissingNarrative)
				fmt.Fprintf(w, "  too short          %d\n", stats.TooShort)
				okColor.Fprintf(w, "  kept               %d\n", stats.Kept)
				okColor.Fprintf(w, "  chunks             %d -> %s\n", stats.Chunks, chunksPath)
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "complaints export (.csv or .xlsx)")
	cmd.Flags().StringVar(&chunksPath, "chunks", "chunks.jsonl", "chunk records output (JSON lines)")
	cmd.Flags().StringVar(&cleanedPath, "cleaned", "", "optional filtered CSV output")
	cmd.Flags().BoolVar(&allProducts, "all-products", false, "keep every product instead of the target set")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk window in characters; defaults to CHUNK_SIZE")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "window overlap in characters; defaults to CHUNK_OVERLAP")
	cmd.Flags().IntVar(&minChars, "min-chars", 0, "drop narratives not longer than this; defaults to MIN_TEXT_CHARS")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

// writeFile streams fill into path through a buffered writer.
func writeFile(path string, fill func(w io.Writer) error) (err error) {
	if path == "" {
		return domain.WrapError(domain.ErrInvalidInput, "write output", errors.New("output path is required"))
	}
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	bw := bufio.NewWriterSize(f, 1<<20)
	if err := fill(bw); err != nil {
		return err
	}
	return bw.Flush()
}
