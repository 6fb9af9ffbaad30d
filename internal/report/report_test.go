package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"example.com/uf2forge/internal/rules"
)

func sampleReport() (BuildInfo, rules.AcceptanceReport) {
	info := BuildInfo{
		Device:     "rp2040",
		OutputPath: "image.uf2",
		OutputSha:  "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		OutputSize: 98304,
		Blocks:     192,
		ScriptName: "demo",
		ScriptLen:  17,
	}
	var rep rules.AcceptanceReport
	rep.Summary.Total = 1
	rep.Summary.Warnings = 1
	rep.Summary.Pass = true
	rep.Findings = []rules.Diagnostic{
		{RuleId: "UF2-006", Severity: rules.WARN, Message: "status word unreadable"},
	}
	return info, rep
}

func TestSaveAcceptanceJSON(t *testing.T) {
	_, rep := sampleReport()
	path := filepath.Join(t.TempDir(), "acceptance.json")
	if err := SaveAcceptanceJSON(rep, path); err != nil {
		t.Fatalf("SaveAcceptanceJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var loaded rules.AcceptanceReport
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.Summary.Total != 1 || !loaded.Summary.Pass {
		t.Fatalf("loaded summary = %+v", loaded.Summary)
	}
}

func TestSaveFlashReportPDF(t *testing.T) {
	info, rep := sampleReport()
	path := filepath.Join(t.TempDir(), "flash_report.pdf")
	if err := SaveFlashReportPDF(info, rep, path); err != nil {
		t.Fatalf("SaveFlashReportPDF: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not start with a PDF header")
	}
}

func TestDigestQR(t *testing.T) {
	png, err := DigestQR("deadbeef", 256)
	if err != nil {
		t.Fatalf("DigestQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("output is not a PNG")
	}
}
