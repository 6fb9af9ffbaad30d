package rules

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteDiagnosticsNDJSON(t *testing.T) {
	eng := &Engine{}
	eng.diagnostics = []Diagnostic{
		{
			Ts:       time.Unix(0, 0),
			File:     "image.uf2",
			RuleId:   "UF2-001",
			Severity: ERROR,
			Message:  "bad start magic",
			Refs:     []string{"uf2 block header"},
		},
		{
			Ts:       time.Unix(1, 0),
			File:     "image.uf2",
			RuleId:   "UF2-006",
			Severity: WARN,
			Message:  "status word unreadable",
		},
	}

	outPath := filepath.Join(t.TempDir(), "diagnostics.ndjson")
	if err := eng.WriteDiagnosticsNDJSON(outPath); err != nil {
		t.Fatalf("WriteDiagnosticsNDJSON failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := bytesTrimSplit(data)
	if len(lines) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("unmarshal first line failed: %v", err)
	}
	if first["ruleId"] != "UF2-001" || first["severity"] != "ERROR" {
		t.Fatalf("unexpected first diagnostic: %v", first)
	}
	if _, ok := first["refs"]; !ok {
		t.Fatalf("refs missing from first diagnostic")
	}
}

func TestMakeAcceptanceSummary(t *testing.T) {
	eng := &Engine{}
	eng.diagnostics = []Diagnostic{
		{RuleId: "UF2-001", Severity: ERROR},
		{RuleId: "UF2-006", Severity: WARN},
		{RuleId: "UF2-006", Severity: WARN},
		{RuleId: "UF2-000", Severity: INFO},
	}
	rep := eng.MakeAcceptance()
	if rep.Summary.Total != 4 || rep.Summary.Errors != 1 || rep.Summary.Warnings != 2 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.Summary.Pass {
		t.Fatalf("report with errors must not pass")
	}

	eng.diagnostics = eng.diagnostics[1:]
	rep = eng.MakeAcceptance()
	if !rep.Summary.Pass {
		t.Fatalf("report without errors should pass: %+v", rep.Summary)
	}
}

func TestLoadRulePackRoundTrip(t *testing.T) {
	rp := DefaultRulePack("rp2040")
	path := filepath.Join(t.TempDir(), "rulepack.json")
	data, err := json.Marshal(rp)
	if err != nil {
		t.Fatalf("marshal rule pack: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write rule pack: %v", err)
	}
	loaded, err := LoadRulePack(path)
	if err != nil {
		t.Fatalf("LoadRulePack: %v", err)
	}
	if loaded.RulePackId != rp.RulePackId || len(loaded.Rules) != len(rp.Rules) {
		t.Fatalf("loaded pack mismatch: %s with %d rules", loaded.RulePackId, len(loaded.Rules))
	}
}

func bytesTrimSplit(in []byte) [][]byte {
	in = bytes.TrimSpace(in)
	if len(in) == 0 {
		return nil
	}
	parts := bytes.Split(in, []byte{'\n'})
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		p = bytes.TrimSpace(p)
		if len(p) == 0 {
			continue
		}
		cp := make([]byte, len(p))
		copy(cp, p)
		out = append(out, cp)
	}
	return out
}
