package tasks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tunegate/internal/formatter"
	"github.com/desertthunder/tunegate/internal/shared"
)

const manifestName = "batch_manifest.json"

type job struct {
	index int
	query string
}

// BatchSearch runs every query through s with a bounded worker pool and a shared rate limit,
// writing one file per query plus a manifest summarizing the batch.
//
// Failed queries are recorded in the manifest and do not stop the batch.
// Cancelling ctx stops dispatching new queries.
func BatchSearch(ctx context.Context, prog chan<- ProgressUpdate, s Searcher, queries []string, opts BatchOpts) (*BatchResult, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: searcher not initialized", shared.ErrMissingArgument)
	}
	if opts.Provider == "" {
		return nil, fmt.Errorf("%w: provider is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("search_batch_%d", time.Now().Unix())
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BatchResult{
		Provider:     opts.Provider,
		Format:       string(format),
		OutputDir:    opts.OutputDir,
		TotalQueries: len(queries),
		StartedAt:    time.Now().UTC(),
		Results:      make([]QueryResult, 0, len(queries)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan job)
	results := make(chan QueryResult, len(queries))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- runQuery(ctx, s, j, format, opts)
			}
		}()
	}

	go func() {
		defer close(jobs)
		sendProgress(prog, startingUpdate(len(queries), opts.Provider))
		for i, q := range queries {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case jobs <- job{index: i + 1, query: q}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success() {
			result.Succeeded++
			sendProgress(prog, queryCompletedUpdate(completed, len(queries), res))
		} else {
			result.Failed++
			sendProgress(prog, queryFailedUpdate(completed, len(queries), res))
		}
	}

	sort.Slice(result.Results, func(i, j int) bool { return result.Results[i].Index < result.Results[j].Index })
	result.Duration = time.Since(result.StartedAt)

	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("batch completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("batch interrupted after %d of %d queries: %w", completed, len(queries), err)
	}
	return result, nil
}

func runQuery(ctx context.Context, s Searcher, j job, format formatter.Format, opts BatchOpts) QueryResult {
	res := QueryResult{Index: j.index, Query: j.query}

	results, err := s.Search(ctx, j.query, opts.Limit, opts.Provider)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Count = len(results)

	path := filepath.Join(opts.OutputDir, fmt.Sprintf("%03d_%s.%s", j.index, slug(j.query), format.Ext()))
	title := fmt.Sprintf("%s results for %q", opts.Provider, j.query)
	if _, err := formatter.WriteFile(path, format, title, results); err != nil {
		res.Error = err.Error()
		return res
	}
	res.File = path
	return res
}

func writeManifest(result *BatchResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadQueries reads one query per line, skipping blank lines and lines starting with '#'.
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := shared.NormalizeQuery(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	return queries, nil
}

// slug turns a query into a short file-name-safe fragment.
func slug(q string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(q) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimSuffix(b.String(), "-")
	if runes := []rune(s); len(runes) > 40 {
		s = strings.TrimSuffix(string(runes[:40]), "-")
	}
	if s == "" {
		return "query"
	}
	return s
}
