package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"datamem/internal/config"
	"datamem/internal/ledger"
	"datamem/internal/memstore"
	"datamem/internal/oracle"
	"datamem/internal/pipeline"
	"datamem/internal/profile"
	"datamem/internal/report"
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

// exit code for compare --fail-on-drift
const exitDrift = 3

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "datamem",
		Short: "Versioned artifact memory for datasets",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "datamem.yaml", "config file path")

	root.AddCommand(newInitCommand(&configPath))
	root.AddCommand(newIngestCommand(&configPath))
	root.AddCommand(newAnalyzeCommand(&configPath))
	root.AddCommand(newQueryCommand(&configPath))
	root.AddCommand(newCompareCommand(&configPath))
	root.AddCommand(newVersionsCommand(&configPath))
	root.AddCommand(newInsightsCommand(&configPath))
	return root
}

func buildService(configPath string) (*pipeline.Service, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}

	store, err := memstore.Open(cfg.StorePath)
	if err != nil {
		return nil, config.Config{}, err
	}

	orc := oracle.NewOllamaClient(oracle.OllamaConfig{
		BaseURL:        cfg.Oracle.BaseURL,
		Model:          cfg.Oracle.Model,
		EmbedModel:     cfg.Oracle.EmbedModel,
		TimeoutSeconds: cfg.Oracle.TimeoutSeconds,
	})

	var compressor oracle.Compressor
	if cfg.Oracle.CompressPrompts {
		client, err := oracle.NewScaleDownClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "prompt compression disabled: %v\n", err)
		} else {
			compressor = client
		}
	}

	svc, err := pipeline.New(store, ledger.New(), orc,
		profile.New(profile.Options{SampleSize: cfg.SampleSize}),
		pipeline.Options{
			DedupThreshold: cfg.DedupThreshold,
			MaxNewInsights: cfg.MaxNewInsights,
			Compressor:     compressor,
		})
	if err != nil {
		return nil, config.Config{}, err
	}
	return svc, cfg, nil
}

func newInitCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize datamem configuration and data directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			if !fileExists(*configPath) {
				if err := os.WriteFile(*configPath, []byte(defaultConfigYAML), 0o644); err != nil {
					return err
				}
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return err
			}
			fmt.Println("initialized datamem config and data directory")
			return nil
		},
	}
}

func newIngestCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <dataset=path> [dataset=path...]",
		Short: "Register dataset files, assigning content-addressed versions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := buildService(*configPath)
			if err != nil {
				return err
			}

			specs := make([]pipeline.IngestSpec, 0, len(args))
			for _, arg := range args {
				specs = append(specs, parseIngestSpec(arg, cfg.DataDir))
			}

			results, err := svc.IngestAll(cmd.Context(), specs)
			if err != nil {
				return err
			}
			for _, res := range results {
				status := "new"
				if res.Reused {
					status = "unchanged"
				}
				fmt.Printf("%s %s %s (%d rows, %d columns, %s)\n",
					res.DatasetID, res.Version, status, res.RowCount, res.ColumnCount, shortDigest(res.Fingerprint))
			}
			return nil
		},
	}
	return cmd
}

func newAnalyzeCommand(configPath *string) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "analyze <dataset>",
		Short: "Compute analysis signals and synthesize insights for a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService(*configPath)
			if err != nil {
				return err
			}

			res, err := svc.Analyze(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
			if res.Synthesized {
				fmt.Printf("%s %s: %d new insight(s), %d duplicate(s) skipped\n",
					res.DatasetID, res.Version, res.NewInsights, res.DuplicatesSkipped)
			} else {
				fmt.Printf("%s %s: insights already synthesized\n", res.DatasetID, res.Version)
			}
			for _, insight := range res.Insights {
				fmt.Printf("  [%s] %s (confidence %.2f)\n", insight.ID, insight.Title, insight.Confidence)
				fmt.Printf("      %s\n", insight.TechnicalSummary)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "version tag (default: latest)")
	return cmd
}

func newQueryCommand(configPath *string) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "query <dataset> <question...>",
		Short: "Answer a question from stored artifacts",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService(*configPath)
			if err != nil {
				return err
			}

			question := strings.Join(args[1:], " ")
			res, err := svc.Query(cmd.Context(), args[0], version, question)
			if err != nil {
				return err
			}
			if res.Cached {
				fmt.Fprintf(os.Stderr, "cached answer for %s %s\n", res.DatasetID, res.Version)
			}
			fmt.Println(res.Answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "version tag (default: latest)")
	return cmd
}

func newCompareCommand(configPath *string) *cobra.Command {
	var format, outPath string
	var failOnDrift bool
	cmd := &cobra.Command{
		Use:   "compare <dataset> <base-version> <compare-version>",
		Short: "Detect schema and distribution drift between two versions",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, _, err := buildService(*configPath)
			if err != nil {
				return err
			}

			r, err := svc.Compare(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			switch format {
			case "json":
				if outPath == "" {
					outPath = "drift.json"
				}
				if err := report.WriteJSON(outPath, r); err != nil {
					return err
				}
				fmt.Println(outPath)
			case "md":
				if outPath == "" {
					outPath = "drift.md"
				}
				if err := report.WriteMarkdown(outPath, r); err != nil {
					return err
				}
				fmt.Println(outPath)
			default:
				return fmt.Errorf("unsupported format %s", format)
			}

			if r.HasDrift() && failOnDrift {
				return cliError{code: exitDrift, err: fmt.Errorf("drift detected between %s and %s", args[1], args[2])}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json|md)")
	cmd.Flags().StringVar(&outPath, "out", "", "output report path")
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when drift is detected")
	return cmd
}

func newVersionsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <dataset>",
		Short: "List known versions of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, _, err := buildService(*configPath)
			if err != nil {
				return err
			}
			versions := svc.Versions(args[0])
			if len(versions) == 0 {
				return fmt.Errorf("dataset %s has no versions", args[0])
			}
			for _, v := range versions {
				fmt.Println(v)
			}
			return nil
		},
	}
}

func newInsightsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "insights <dataset>",
		Short: "List stored insights for a dataset across versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, _, err := buildService(*configPath)
			if err != nil {
				return err
			}
			for _, insight := range svc.Insights(args[0]) {
				fmt.Printf("[%s] %s %s: %s (confidence %.2f)\n",
					insight.ID, insight.DatasetID, insight.Version, insight.Title, insight.Confidence)
			}
			return nil
		},
	}
}

// parseIngestSpec accepts "dataset=path" or a bare path, whose stem becomes
// the dataset id. Relative paths resolve under the configured data dir.
func parseIngestSpec(arg, dataDir string) pipeline.IngestSpec {
	datasetID, path, found := strings.Cut(arg, "=")
	if !found {
		path = arg
		base := filepath.Base(path)
		datasetID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if !filepath.IsAbs(path) && !fileExists(path) {
		if candidate := filepath.Join(dataDir, path); fileExists(candidate) {
			path = candidate
		}
	}
	return pipeline.IngestSpec{DatasetID: datasetID, Path: path}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

const defaultConfigYAML = `store_path: memory_store.json
data_dir: data
dedup_threshold: 0.88
max_new_insights: 8
sample_size: 200000
oracle:
  base_url: http://localhost:11434
  model: llama3.1:8b
  embed_model: ""
  timeout_seconds: 120
  compress_prompts: false
`
