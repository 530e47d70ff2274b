// package formatter renders run reports and run history (JSON, plain text) and exports desired sets as M3U playlists
package formatter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// ExportToJSON converts a RunReport to indented JSON
func ExportToJSON(report models.RunReport) ([]byte, error) {
	if report.Items == nil {
		report.Items = []models.RunItem{}
	}
	data, err := shared.MarshalJSON(report, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToText converts a RunReport to plain text: a summary followed by one line per item
func ExportToText(report models.RunReport) ([]byte, error) {
	var buf bytes.Buffer

	title := "Sync"
	if report.DryRun {
		title = "Dry run"
	}
	buf.WriteString(fmt.Sprintf("%s: %s (%s) /%s\n", title, report.Device, report.StorageArea, report.RootFolder))
	buf.WriteString(fmt.Sprintf("Desired: %d  On device: %d  Missing: %d\n", report.Desired, report.Indexed, report.Missing))
	if !report.DryRun {
		buf.WriteString(fmt.Sprintf("Transferred: %d (%s)  Failed: %d\n", report.Transferred, shared.FormatBytes(report.Bytes), report.Failed))
	}
	if report.Duration > 0 {
		buf.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration.Round(time.Millisecond)))
	}

	if len(report.Items) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n")
	for _, item := range report.Items {
		switch {
		case item.Failed():
			buf.WriteString(fmt.Sprintf("  ✗ %s [%s] %s\n", item.Destination, item.Stage, item.Error))
		case item.Stage == models.StageTransferred:
			buf.WriteString(fmt.Sprintf("  ✓ %s\n", item.Destination))
		default:
			buf.WriteString(fmt.Sprintf("  - %s [%s]\n", item.Destination, item.Stage))
		}
	}

	return buf.Bytes(), nil
}

// ExportHistory renders runs as an aligned table, one row per run
func ExportHistory(runs []*models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "RUN\tSTARTED\tDEVICE\tSTATUS\tMISSING\tSENT\tFAILED")
	fmt.Fprintln(w, "---\t-------\t------\t------\t-------\t----\t------")
	for _, run := range runs {
		status := string(run.Status())
		if run.DryRun() {
			status += " (dry run)"
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.Sequence(),
			run.StartedAt().Local().Format("2006-01-02 15:04"),
			run.DeviceName(),
			status,
			run.MissingCount(),
			run.TransferredCount(),
			run.FailedCount(),
		)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render history: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToM3U converts a list of file paths to an M3U playlist, one path per line
func ExportToM3U(files []string) []byte {
	if len(files) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(files, "\n") + "\n")
}

// SanitizeFilename replaces characters that are not safe in a file name.
//
// Reserved characters and control characters become "_", surrounding dots and spaces are trimmed,
// and an empty result becomes "playlist".
func SanitizeFilename(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, name)

	mapped = strings.Trim(mapped, ". ")
	if mapped == "" {
		return "playlist"
	}
	return mapped
}

// WriteM3UExport writes files as {dir}/{name}.m3u and returns the path.
//
// The name is sanitized. Defaults to the system temp directory when dir is empty.
func WriteM3UExport(dir, name string, files []string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	p := filepath.Join(dir, SanitizeFilename(name)+".m3u")
	if err := os.WriteFile(p, ExportToM3U(files), 0644); err != nil {
		return "", fmt.Errorf("failed to write m3u file: %w", err)
	}
	return p, nil
}

// WriteReport writes the report to path, choosing JSON when the path ends in .json and text otherwise
func WriteReport(report models.RunReport, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = ExportToJSON(report)
	} else {
		data, err = ExportToText(report)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
