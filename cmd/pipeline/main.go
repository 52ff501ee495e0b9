// Command pipeline is the thin CLI collaborator wrapping pipeline.Runner
// and validate, per spec.md 6's command surface. It carries no curation
// logic of its own; it discovers pipeline definitions, resolves flags
// into pipeline.RunOptions, and reports results. Grounded on cobra's
// single-root-command-with-flags style and on the teacher's main.go for
// signal handling around the optional --serve health server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/withobsrvr/medallion-foundry/connections"
	"github.com/withobsrvr/medallion-foundry/duckdbx"
	"github.com/withobsrvr/medallion-foundry/extractors"
	"github.com/withobsrvr/medallion-foundry/health"
	"github.com/withobsrvr/medallion-foundry/logging"
	"github.com/withobsrvr/medallion-foundry/pipeline"
	"github.com/withobsrvr/medallion-foundry/validate"
	"github.com/withobsrvr/medallion-foundry/watermark"
)

var logger = logging.New("cli")

type flags struct {
	configDir    string
	date         string
	dryRun       bool
	check        bool
	explain      bool
	list         bool
	target       string
	serve        bool
	servePort    string
	watermarkDir string
	watermarkAge string
	clearWaterm  bool
}

func main() {
	f := &flags{}
	root := &cobra.Command{
		Use:   "pipeline [pipeline_name[:bronze|:silver]]",
		Short: "Run declarative Bronze -> Silver medallion pipelines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, args)
		},
	}

	root.Flags().StringVar(&f.configDir, "config-dir", "pipelines", "directory of pipeline YAML definitions")
	root.Flags().StringVar(&f.date, "date", time.Now().UTC().Format("2006-01-02"), "run date (YYYY-MM-DD)")
	root.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate and print the plan; no side effects")
	root.Flags().BoolVar(&f.check, "check", false, "structural validation only")
	root.Flags().BoolVar(&f.explain, "explain", false, "print the resolved plan")
	root.Flags().BoolVar(&f.list, "list", false, "enumerate discovered pipelines")
	root.Flags().StringVar(&f.target, "target", "", "override output root")
	root.Flags().BoolVar(&f.serve, "serve", false, "run the health/metrics HTTP surface alongside the run")
	root.Flags().StringVar(&f.servePort, "serve-port", "8093", "port for --serve")
	root.Flags().StringVar(&f.watermarkDir, "watermark-dir", "", "watermark store root (default PIPELINE_STATE_DIR or .state)")
	root.Flags().StringVar(&f.watermarkAge, "watermark-age", "", "print watermark age in hours for system/entity (format: system.entity) and exit")
	root.Flags().BoolVar(&f.clearWaterm, "clear-watermarks", false, "clear every stored watermark and exit")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags, args []string) error {
	stateDir := f.watermarkDir
	if stateDir == "" {
		stateDir = os.Getenv("PIPELINE_STATE_DIR")
	}
	if stateDir == "" {
		stateDir = ".state"
	}
	store := watermark.NewStore(stateDir)

	if f.clearWaterm {
		count, err := store.ClearAll()
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d watermark(s)\n", count)
		return nil
	}
	if f.watermarkAge != "" {
		parts := strings.SplitN(f.watermarkAge, ".", 2)
		if len(parts) != 2 {
			return fmt.Errorf("--watermark-age expects system.entity")
		}
		age, ok := store.Age(parts[0], parts[1])
		if !ok {
			return fmt.Errorf("no watermark stored for %s.%s", parts[0], parts[1])
		}
		fmt.Printf("%.2f hours\n", age.Hours())
		return nil
	}

	pipelines, err := pipeline.LoadDir(f.configDir)
	if err != nil {
		return fmt.Errorf("load pipelines: %w", err)
	}

	if f.list {
		for _, p := range pipelines {
			fmt.Println(p.Name)
		}
		return nil
	}

	name, layer := "", ""
	if len(args) == 1 {
		parts := strings.SplitN(args[0], ":", 2)
		name = parts[0]
		if len(parts) == 2 {
			layer = parts[1]
		}
	}

	selected := pipelines
	if name != "" {
		selected = nil
		for _, p := range pipelines {
			if p.Name == name {
				selected = append(selected, p)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("no pipeline named %q in %s", name, f.configDir)
		}
	}

	if f.check {
		failed := false
		for _, p := range selected {
			issues := validate.Structural(p)
			if len(issues) > 0 {
				failed = true
				fmt.Printf("%s: %d issue(s)\n", p.Name, len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}
		}
		if failed {
			os.Exit(2)
		}
		fmt.Println("all pipelines pass structural validation")
		return nil
	}

	opts := pipeline.RunOptions{
		RunDate:        f.date,
		DryRun:         f.dryRun || f.explain,
		SkipBronze:     layer == "silver",
		SkipSilver:     layer == "bronze",
		TargetOverride: f.target,
	}

	var duck *sql.DB
	if !opts.DryRun {
		s3, ok := duckdbx.S3ConfigFromEnv()
		var s3ptr *duckdbx.S3Config
		if ok {
			s3ptr = &s3
		}
		duck, err = duckdbx.Open(ctx, s3ptr)
		if err != nil {
			return fmt.Errorf("open duckdb: %w", err)
		}
		defer duck.Close()
	}

	conns := connections.New()
	defer conns.Close()

	status := health.NewStatus()
	if f.serve {
		srv := health.NewServer(status, f.servePort)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("health server stopped")
			}
		}()
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	for _, p := range selected {
		for _, issue := range validate.Structural(p) {
			logger.Warn().Str("pipeline", p.Name).Msg(issue)
		}

		result := runPipeline(sigCtx, p, store, duck, conns, opts)

		if f.explain {
			printPlan(result)
			continue
		}

		health.RecordRun(p.Name, result.Bronze.Skipped || result.Success, result.Silver.Skipped || result.Success,
			result.Bronze.RowCount, result.Silver.RowCount, result.ElapsedSeconds, time.Now())
		status.RecordRunStatus(p.Name, result.Success, time.Now(), errString(result.Error))

		if !result.Success {
			exitCode = 1
			logger.Error().Str("pipeline", p.Name).Err(result.Error).Msg("pipeline run failed")
		} else {
			logger.Info().Str("pipeline", p.Name).
				Int("bronze_rows", result.Bronze.RowCount).
				Int("silver_rows", result.Silver.RowCount).
				Float64("elapsed_seconds", result.ElapsedSeconds).
				Msg("pipeline run complete")
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func runPipeline(ctx context.Context, p *pipeline.Pipeline, store *watermark.Store, duck *sql.DB, conns *connections.Registry, opts pipeline.RunOptions) pipeline.RunResult {
	runner := pipeline.NewRunner(p, store, duck)
	runner.BronzeBuilder = func(pp *pipeline.Pipeline) (extractors.Extractor, error) {
		return pipeline.BuildExtractor(pp.Bronze, conns, store, duck)
	}
	return runner.Run(ctx, opts)
}

func printPlan(result pipeline.RunResult) {
	fmt.Printf("pipeline: %s\n", result.PipelineName)
	fmt.Printf("  bronze target: %s\n", result.Bronze.Target)
	fmt.Printf("  silver target: %s\n", result.Silver.Target)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
