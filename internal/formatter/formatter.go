// package formatter renders search results for the terminal and for files (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
)

// Formats lists every supported format in display order.
var Formats = []Format{JSON, CSV, Markdown, Text}

// ParseFormat resolves a user-supplied format name. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, s)
}

// Ext is the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// ExportToJSON renders results as an indented JSON array; nil renders as [].
func ExportToJSON(results []models.SearchResult) ([]byte, error) {
	if results == nil {
		results = []models.SearchResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts results to CSV with columns: Name, Author, Album, Duration, Seconds, Bitrate, URL
func ExportToCSV(results []models.SearchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Name", "Author", "Album", "Duration", "Seconds", "Bitrate", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range results {
		record := []string{
			r.Name,
			r.Author,
			r.Album,
			durationText(r),
			strconv.Itoa(r.Duration),
			strconv.Itoa(r.Bitrate),
			r.URL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders results as a numbered Markdown list under title
func ExportToMarkdown(title string, results []models.SearchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Results**: %d\n\n", len(results)))

	for i, r := range results {
		albumPart := ""
		if r.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", r.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. [%s - %s](%s)%s [%s]\n", i+1, author(r), r.Name, r.URL, albumPart, durationText(r)))
	}

	return buf.Bytes(), nil
}

// ExportToText renders results as plain text
func ExportToText(title string, results []models.SearchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", title))
	buf.WriteString(fmt.Sprintf("Results: %d\n\n", len(results)))

	for i, r := range results {
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n", i+1, author(r), r.Name, durationText(r)))
	}

	return buf.Bytes(), nil
}

// Export renders results in format f. title is used by the Markdown and text formats.
func Export(f Format, title string, results []models.SearchResult) ([]byte, error) {
	switch f {
	case JSON:
		return ExportToJSON(results)
	case CSV:
		return ExportToCSV(results)
	case Markdown:
		return ExportToMarkdown(title, results)
	case Text:
		return ExportToText(title, results)
	}
	return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, f)
}

// Write renders results in format f to w.
func Write(w io.Writer, f Format, title string, results []models.SearchResult) error {
	data, err := Export(f, title, results)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", f, err)
	}
	return nil
}

// WriteFile renders results in format f to path.
//
// Defaults to results.{ext} when path is empty; returns the path written.
func WriteFile(path string, f Format, title string, results []models.SearchResult) (string, error) {
	if path == "" {
		path = "results." + f.Ext()
	}

	data, err := Export(f, title, results)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}

func author(r models.SearchResult) string {
	if r.Author == "" {
		return "Unknown"
	}
	return r.Author
}

func durationText(r models.SearchResult) string {
	if r.DurationText != "" {
		return r.DurationText
	}
	return shared.FormatDuration(r.Duration)
}
