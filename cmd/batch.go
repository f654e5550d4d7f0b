package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunegate/internal/formatter"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/desertthunder/tunegate/internal/tasks"
)

// Batch reads queries from a file and searches them concurrently through one provider.
//
// Individual query failures are reported in the manifest; the command only fails when
// the batch itself cannot run.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	path := strings.TrimSpace(cmd.StringArg("file"))
	if path == "" {
		return fmt.Errorf("%w: queries file is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open queries file: %w", err)
	}
	defer f.Close()

	queries, err := tasks.ReadQueries(f)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("%w: no queries in %s", shared.ErrMissingArgument, path)
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	provider := cmd.String("provider")
	aggregator, err := r.aggregatorFor(config, provider)
	if err != nil {
		return err
	}

	prog := make(chan tasks.ProgressUpdate, len(queries)+2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range prog {
			r.logger.Info(u.Message, "phase", u.Phase)
		}
	}()

	result, err := tasks.BatchSearch(ctx, prog, aggregator, queries, tasks.BatchOpts{
		Provider:   provider,
		Limit:      limit,
		Format:     string(format),
		OutputDir:  cmd.String("output-dir"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	})
	close(prog)
	<-done

	if result != nil {
		fmt.Fprintf(r.output, "✓ %d/%d queries succeeded, %d failed\n", result.Succeeded, result.TotalQueries, result.Failed)
		if result.ManifestPath != "" {
			fmt.Fprintf(r.output, "  Manifest: %s\n", result.ManifestPath)
		}
	}
	return err
}
