package common

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry records one image transform for later review.
type AuditEntry struct {
	Ts         time.Time `json:"ts"`
	Operation  string    `json:"operation"`
	Device     string    `json:"device"`
	InputSha   string    `json:"inputSha,omitempty"`
	OutputSha  string    `json:"outputSha,omitempty"`
	ScriptName string    `json:"scriptName,omitempty"`
	ScriptLen  int       `json:"scriptLen,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// AuditLog provides append-only access to a JSONL audit file.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog returns an AuditLog that writes to the provided path.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the backing file path for the log.
func (a *AuditLog) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Append writes one entry. Entries are timestamped at write time when
// the caller leaves Ts zero.
func (a *AuditLog) Append(entry AuditEntry) error {
	if a == nil || a.path == "" {
		return nil
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// ReadAuditLog loads every entry from a JSONL audit file.
func ReadAuditLog(path string) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
