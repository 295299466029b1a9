package output

import (
	"encoding/json"

	"github.com/sambabib/depcheck/pkg/engine"
)

// GenerateJSONReport renders the full report as indented JSON.
func GenerateJSONReport(report engine.Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
