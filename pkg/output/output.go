// Package output renders an analysis report as text, JSON or SARIF.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/sambabib/depcheck/pkg/engine"
)

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// Write renders report to w in the named format.
func Write(w io.Writer, format string, report engine.Report, manifestPath string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", FormatText:
		return WriteTextReport(w, report)
	case FormatJSON:
		data, err = GenerateJSONReport(report)
	case FormatSARIF:
		data, err = GenerateSarifReport(report, manifestPath)
	default:
		return fmt.Errorf("unsupported output format %q (use text, json or sarif)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s report: %w", format, err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
