package report

import (
	"encoding/json"
	"os"

	"example.com/uf2forge/internal/rules"
)

// BuildInfo describes one finished image for reporting.
type BuildInfo struct {
	Device     string `json:"device"`
	OutputPath string `json:"outputPath,omitempty"`
	OutputSha  string `json:"outputSha"`
	OutputSize int64  `json:"outputSize"`
	Blocks     int    `json:"blocks"`
	ScriptName string `json:"scriptName,omitempty"`
	ScriptLen  int    `json:"scriptLen"`
}

// SaveAcceptanceJSON writes an acceptance report as indented JSON.
func SaveAcceptanceJSON(rep rules.AcceptanceReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}
