// package tasks runs long batch operations over the search aggregator.
//
// Operations emit progress updates via channels for non-blocking status reporting to the CLI.
package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/tunegate/internal/models"
)

// Searcher is the subset of [services.Aggregator] a batch needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, provider string) ([]models.SearchResult, error)
}

// BatchOpts contains configuration for a batch search.
type BatchOpts struct {
	Provider   string  // Provider to query for every line
	Limit      int     // Result limit per query (default: 20)
	Format     string  // Output format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: search_batch_{epoch})
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Queries per second (default: 5)
}

// QueryResult is the outcome of one query in a batch.
type QueryResult struct {
	Index int    `json:"index"`
	Query string `json:"query"`
	File  string `json:"file,omitempty"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// Success reports whether the query produced an output file.
func (q QueryResult) Success() bool { return q.Error == "" }

// BatchResult summarizes a batch search. It is also the manifest written next to the outputs.
type BatchResult struct {
	Provider     string        `json:"provider"`
	Format       string        `json:"format"`
	OutputDir    string        `json:"output_dir"`
	TotalQueries int           `json:"total_queries"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Results      []QueryResult `json:"results"`
	ManifestPath string        `json:"-"`
}
