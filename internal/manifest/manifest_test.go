package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildSaveLoadVerify(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "image.uf2")
	scriptPath := filepath.Join(dir, "main.py")
	if err := os.WriteFile(imagePath, []byte("uf2 payload"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := os.WriteFile(scriptPath, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	m, err := Build([]string{imagePath, scriptPath})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(m.Items))
	}
	if m.Items[0].Type != "uf2" || m.Items[1].Type != "script" {
		t.Fatalf("item types = %s, %s", m.Items[0].Type, m.Items[1].Type)
	}
	if m.ShaAlgo != "sha256" {
		t.Fatalf("shaAlgo = %s", m.ShaAlgo)
	}

	manifestPath := filepath.Join(dir, "manifest.json")
	if err := Save(m, manifestPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(manifestPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Items) != 2 || loaded.Items[0].Sha256 != m.Items[0].Sha256 {
		t.Fatalf("loaded manifest mismatch: %+v", loaded)
	}

	stale, err := Verify(loaded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("fresh manifest reported stale items: %v", stale)
	}

	if err := os.WriteFile(scriptPath, []byte("print(2)\n"), 0o644); err != nil {
		t.Fatalf("rewrite script: %v", err)
	}
	stale, err = Verify(loaded)
	if err != nil {
		t.Fatalf("Verify after change: %v", err)
	}
	if len(stale) != 1 || stale[0] != scriptPath {
		t.Fatalf("stale = %v, want [%s]", stale, scriptPath)
	}
}

func TestBuildMissingFile(t *testing.T) {
	_, err := Build([]string{filepath.Join(t.TempDir(), "missing.uf2")})
	if err == nil {
		t.Fatalf("expected error for missing input")
	}
}
