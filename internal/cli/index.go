package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kirillkom/complaint-analyst/internal/bootstrap"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/usecase"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/corpus"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/indexstore"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/vector/qdrant"
)

func parseGeneration(raw string) (domain.IndexGeneration, error) {
	gen := domain.IndexGeneration(raw)
	if !slices.Contains(domain.IndexGenerations, gen) {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse generation", fmt.Errorf("unknown generation %q, want full or medium", raw))
	}
	return gen, nil
}

func newBuildIndexCommand(e *env) *cobra.Command {
	var chunksPath, generation string
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Embed chunk records and write an index generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, err := parseGeneration(generation)
			if err != nil {
				return err
			}
			embedder, err := bootstrap.NewEmbedder(e.cfg)
			if err != nil {
				return err
			}
			chunks, err := corpus.LoadChunks(chunksPath)
			if err != nil {
				return err
			}

			builder := usecase.NewIndexBuilder(embedder, indexstore.NewDirWriter(e.cfg.IndexDir), usecase.BuildOptions{
				BatchSize: e.cfg.EmbedBatchSize,
				Workers:   e.cfg.EmbedWorkers,
			})
			stats, err := builder.Build(cmd.Context(), gen, chunks)
			if err != nil {
				return err
			}
			return e.report(cmd, stats, func(w io.Writer) {
				okColor.Fprint(w, "built ")
				fmt.Fprintf(w, "%s generation in %s: %d chunks, %d batches, dimension %d, %dms\n",
					stats.Generation, e.cfg.IndexDir, stats.Chunks, stats.Batches, stats.Dimension, stats.DurationMS)
			})
		},
	}
	cmd.Flags().StringVar(&chunksPath, "chunks", "chunks.jsonl", "chunk records (JSON lines)")
	cmd.Flags().StringVar(&generation, "generation", string(domain.GenerationMedium), "generation to write (full or medium)")
	return cmd
}

func newImportParquetCommand(e *env) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "import-parquet",
		Short: "Import precomputed embeddings from parquet as the full generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			embedder, err := bootstrap.NewEmbedder(e.cfg)
			if err != nil {
				return err
			}
			stats, err := corpus.ImportParquet(cmd.Context(), input, e.cfg.IndexDir, embedder.Identity())
			if err != nil {
				return err
			}
			return e.report(cmd, stats, func(w io.Writer) {
				okColor.Fprint(w, "imported ")
				fmt.Fprintf(w, "%d rows (dimension %d) into %s\n", stats.Rows, stats.Dimension, e.cfg.IndexDir)
				if stats.MissingProduct > 0 {
					warnColor.Fprintf(w, "%d rows have no product and are stored as %q\n", stats.MissingProduct, domain.MissingProduct)
				}
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "complaint_embeddings.parquet", "parquet file with id, document, embedding and metadata columns")
	return cmd
}

type verifyResult struct {
	Report       domain.IntegrityReport `json:"report"`
	QueryEncoder domain.EncoderIdentity `json:"query_encoder"`
	EncoderOK    bool                   `json:"encoder_ok"`
	Probe        string                 `json:"probe,omitempty"`
	ProbeResults []domain.SearchResult  `json:"probe_results,omitempty"`
}

func newVerifyCommand(e *env) *cobra.Command {
	var probe string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check index integrity and run a probe search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := indexstore.Open(e.cfg.IndexDir, indexstore.Options{})
			if err != nil {
				return err
			}
			report, verifyErr := store.Verify()

			embedder, err := bootstrap.NewEmbedder(e.cfg)
			if err != nil {
				return err
			}
			result := verifyResult{
				Report:       report,
				QueryEncoder: embedder.Identity(),
				EncoderOK:    embedder.Identity().Compatible(report.Encoder),
				Probe:        probe,
			}

			var probeErr error
			if verifyErr == nil && result.EncoderOK && probe != "" {
				result.ProbeResults, probeErr = e.probe(cmd, probe)
			}

			if err := e.report(cmd, result, func(w io.Writer) { printVerify(w, result, probeErr) }); err != nil {
				return err
			}
			switch {
			case verifyErr != nil:
				return verifyErr
			case !result.EncoderOK:
				return domain.WrapError(domain.ErrEncoderMismatch, "verify index", fmt.Errorf(
					"index encoder %s/%s, query encoder %s/%s",
					report.Encoder.Provider, report.Encoder.Model, result.QueryEncoder.Provider, result.QueryEncoder.Model))
			default:
				return probeErr
			}
		},
	}
	cmd.Flags().StringVar(&probe, "probe", "unexpected fees", "probe query; empty skips the search")
	return cmd
}

func (e *env) probe(cmd *cobra.Command, query string) ([]domain.SearchResult, error) {
	app, err := e.app(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer app.Close()
	return app.Retriever.Search(cmd.Context(), query, 3, "")
}

func printVerify(w io.Writer, r verifyResult, probeErr error) {
	headingColor.Fprintf(w, "%s generation (%s layout)\n", r.Report.Generation, r.Report.Layout)
	fmt.Fprintf(w, "  vectors    %d\n", r.Report.VectorCount)
	fmt.Fprintf(w, "  metadata   %d\n", r.Report.MetadataCount)
	fmt.Fprintf(w, "  dimension  %d\n", r.Report.Dimension)
	if r.Report.HasManifest {
		fmt.Fprintf(w, "  encoder    %s/%s\n", r.Report.Encoder.Provider, r.Report.Encoder.Model)
	} else {
		warnColor.Fprintln(w, "  manifest   missing (legacy store)")
	}
	for _, problem := range r.Report.Problems {
		failColor.Fprintln(w, "  FAIL", problem)
	}
	if !r.EncoderOK {
		failColor.Fprintf(w, "  FAIL query encoder %s/%s (%d dims) cannot search this index\n",
			r.QueryEncoder.Provider, r.QueryEncoder.Model, r.QueryEncoder.Dimension)
	}
	if r.Report.OK() && r.EncoderOK {
		okColor.Fprintln(w, "  OK")
	}
	if r.Probe == "" || !r.Report.OK() || !r.EncoderOK {
		return
	}
	if probeErr != nil {
		failColor.Fprintf(w, "probe %q failed: %v\n", r.Probe, probeErr)
		return
	}
	headingColor.Fprintf(w, "probe %q\n", r.Probe)
	printResults(w, r.ProbeResults)
}

func newPublishIndexCommand(e *env) *cobra.Command {
	var generation string
	cmd := &cobra.Command{
		Use:   "publish-index",
		Short: "Upload a local index generation to S3-compatible storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen := domain.IndexGeneration(generation)
			if generation == "" {
				paths, err := indexstore.Resolve(e.cfg.IndexDir, false)
				if err != nil {
					return err
				}
				gen = paths.Generation
			} else if _, err := parseGeneration(generation); err != nil {
				return err
			}

			sync, err := bootstrap.NewIndexSync(cmd.Context(), e.cfg, true)
			if err != nil {
				return err
			}
			if err := sync.Publish(cmd.Context(), gen); err != nil {
				return err
			}
			return e.report(cmd, map[string]string{"generation": string(gen), "bucket": e.cfg.IndexS3Bucket}, func(w io.Writer) {
				okColor.Fprint(w, "published ")
				fmt.Fprintf(w, "%s generation to s3://%s/%s\n", gen, e.cfg.IndexS3Bucket, e.cfg.IndexS3Prefix)
			})
		},
	}
	cmd.Flags().StringVar(&generation, "generation", "", "generation to upload; defaults to the preferred local one")
	return cmd
}

func newFetchIndexCommand(e *env) *cobra.Command {
	var generation string
	cmd := &cobra.Command{
		Use:   "fetch-index",
		Short: "Download an index generation from S3-compatible storage into the index directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, err := bootstrap.NewIndexSync(cmd.Context(), e.cfg, false)
			if err != nil {
				return err
			}
			var gen domain.IndexGeneration
			if generation == "" {
				gen, err = sync.PullPreferred(cmd.Context())
			} else if gen, err = parseGeneration(generation); err == nil {
				err = sync.Pull(cmd.Context(), gen)
			}
			if err != nil {
				return err
			}
			return e.report(cmd, map[string]string{"generation": string(gen), "dir": e.cfg.IndexDir}, func(w io.Writer) {
				okColor.Fprint(w, "fetched ")
				fmt.Fprintf(w, "%s generation into %s\n", gen, e.cfg.IndexDir)
			})
		},
	}
	cmd.Flags().StringVar(&generation, "generation", "", "generation to download; defaults to full, then medium")
	return cmd
}

func newPublishQdrantCommand(e *env) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "publish-qdrant",
		Short: "Upload the local index vectors to the Qdrant collection",
		Long: "Points are keyed by ordinal so a Qdrant-backed API can resolve hits " +
			"against the same local metadata file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := indexstore.Open(e.cfg.IndexDir, indexstore.Options{})
			if err != nil {
				return err
			}
			if _, err := store.Verify(); err != nil {
				return err
			}

			index := store.Index()
			vectors := make([][]float32, index.Len())
			chunks := make([]domain.ChunkMeta, index.Len())
			for i := range vectors {
				vectors[i] = index.Row(i)
				chunks[i], _ = store.Chunk(int64(i))
			}

			target := qdrant.New(e.cfg.QdrantURL, e.cfg.QdrantCollection, qdrant.Options{Executor: bootstrap.NewExecutor(e.cfg)})
			if err := target.Upload(cmd.Context(), vectors, chunks, batch); err != nil {
				return err
			}
			payload := map[string]any{"collection": e.cfg.QdrantCollection, "points": len(vectors), "generation": store.Generation()}
			return e.report(cmd, payload, func(w io.Writer) {
				okColor.Fprint(w, "uploaded ")
				fmt.Fprintf(w, "%d points from the %s generation to %s\n", len(vectors), store.Generation(), e.cfg.QdrantCollection)
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 512, "points per upsert request")
	return cmd
}
