// package formatter renders cache entries as JSON, CSV, Markdown or plain text
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

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat maps a user-supplied name to a [Format].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// Export renders entries in format.
func Export(entries []models.CacheEntry, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(entries)
	case FormatCSV:
		return ExportToCSV(entries)
	case FormatMarkdown:
		return ExportToMarkdown(entries, "Offline cache")
	case FormatText:
		return ExportToText(entries)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

// Render writes entries to w in format.
func Render(w io.Writer, entries []models.CacheEntry, format Format) error {
	data, err := Export(entries, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// ExportToJSON renders entries as an indented JSON array.
func ExportToJSON(entries []models.CacheEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.CacheEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV renders entries with columns: Resource, Name, State, Tracks, Files, Bytes
func ExportToCSV(entries []models.CacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Resource", "Name", "State", "Tracks", "Files", "Bytes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			string(e.Resource),
			e.Name,
			e.State,
			strings.Join(e.Tracks, " "),
			strconv.Itoa(e.Files),
			strconv.FormatInt(e.Bytes, 10),
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

// ExportToMarkdown renders entries as a Markdown table under title.
func ExportToMarkdown(entries []models.CacheEntry, title string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Resources**: %d\n", len(entries))
	fmt.Fprintf(&buf, "**Size**: %s\n\n", shared.FormatBytes(totalBytes(entries)))

	if len(entries) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| Name | State | Tracks | Files | Size |\n")
	buf.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "| [%s](%s) | %s | %s | %d | %s |\n",
			escapeCell(e.Name), e.Resource, e.State, tracksLabel(e.Tracks), e.Files, shared.FormatBytes(e.Bytes))
	}

	return buf.Bytes(), nil
}

// ExportToText renders one line per entry.
func ExportToText(entries []models.CacheEntry) ([]byte, error) {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("Nothing cached\n")
		return buf.Bytes(), nil
	}

	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s [%s] tracks: %s, %d files, %s\n",
			i+1, e.Name, e.State, tracksLabel(e.Tracks), e.Files, shared.FormatBytes(e.Bytes))
		if e.Name != string(e.Resource) {
			fmt.Fprintf(&buf, "   %s\n", e.Resource)
		}
	}
	fmt.Fprintf(&buf, "\nTotal: %d resources, %s\n", len(entries), shared.FormatBytes(totalBytes(entries)))

	return buf.Bytes(), nil
}

// ExportTracks renders selectable tracks, one per line.
func ExportTracks(options []models.TrackOption) []byte {
	var buf bytes.Buffer
	if len(options) == 0 {
		buf.WriteString("No selectable tracks, the resource is downloaded whole\n")
		return buf.Bytes()
	}
	for _, o := range options {
		fmt.Fprintf(&buf, "%s\t%s\n", o.Key, o.Name)
	}
	return buf.Bytes()
}

// WriteExport writes entries in format to path.
//
// Defaults to hlsx_cache.{format} as the filename.
func WriteExport(entries []models.CacheEntry, format Format, path string) (string, error) {
	if path == "" {
		path = "hlsx_cache." + string(format)
	}

	data, err := Export(entries, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func tracksLabel(tracks []string) string {
	if len(tracks) == 0 {
		return "all"
	}
	return strings.Join(tracks, ", ")
}

func totalBytes(entries []models.CacheEntry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Bytes
	}
	return n
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
