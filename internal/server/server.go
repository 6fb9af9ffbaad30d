package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/uf2forge/internal/common"
	"example.com/uf2forge/internal/uf2"
)

// Server coordinates HTTP handlers and manages temporary artifacts
// produced by merge and validation requests.
type Server struct {
	artifacts     *ArtifactStore
	workDir       string
	uploadsDir    string
	defaultDevice string
	metrics       *common.Metrics
	audit         *common.AuditLog
}

// Options configures server creation.
type Options struct {
	StorageDir    string
	DefaultDevice string
	AuditLogPath  string
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace
// directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "uf2d-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	device := strings.TrimSpace(opts.DefaultDevice)
	if device == "" {
		device = uf2.DefaultDevice
	}
	if _, err := uf2.LayoutFor(device); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	var audit *common.AuditLog
	if opts.AuditLogPath != "" {
		audit = common.NewAuditLog(opts.AuditLogPath)
	}
	s := &Server{
		artifacts:     &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:       workDir,
		uploadsDir:    uploadsDir,
		defaultDevice: device,
		metrics:       common.NewMetrics(),
		audit:         audit,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (s *Server) layoutForRequest(device string) (string, uf2.Layout, error) {
	name := strings.TrimSpace(device)
	if name == "" {
		name = s.defaultDevice
	}
	l, err := uf2.LayoutFor(name)
	return name, l, err
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".py", ".txt":
		return "text/plain"
	case ".uf2":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}
