package logger

import (
	"fmt"
	"os"
	"path/filepath"
)

// StringListReport is a titled list written one item per line.
type StringListReport struct {
	Title string
	Items []string
}

// WriteToFile writes the report to dir as <title>.txt, with the title
// reduced to alphanumerics, and returns the file path.
func (r StringListReport) WriteToFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating base path: %w", err)
	}

	// Sanitize the title for use in a filename
	title := r.Title
	if title == "" {
		title = "untitled"
	}
	safeTitle := ""
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' {
			safeTitle += string(c)
		} else {
			safeTitle += "_"
		}
	}

	reportFullPath := filepath.Join(dir, safeTitle+".txt")
	f, err := os.Create(reportFullPath)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	for _, item := range r.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to file: %w", err)
		}
	}
	return reportFullPath, nil
}
