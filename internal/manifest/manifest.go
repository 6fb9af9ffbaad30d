package manifest

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"example.com/uf2forge/internal/common"
)

// Item describes one artifact covered by a manifest.
type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

// Manifest lists the artifacts of a flash-image build with their
// digests, so a finished image can be verified before it is offered
// for download or copied to removable media.
type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

// Build hashes each path and assembles a manifest.
func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		digest, size, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: size, Sha256: digest, Type: itemType(p)})
	}
	return m, nil
}

func itemType(path string) string {
	switch {
	case hasExt(path, ".uf2"):
		return "uf2"
	case hasExt(path, ".py", ".txt"):
		return "script"
	case hasExt(path, ".json", ".ndjson"):
		return "json"
	case hasExt(path, ".pdf"):
		return "pdf"
	case hasExt(path, ".png"):
		return "png"
	default:
		return "other"
	}
}

func hasExt(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// Save writes the manifest as indented JSON.
func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

// Load reads a manifest back from disk.
func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// Verify re-hashes every item and returns the paths whose digests no
// longer match.
func Verify(m Manifest) ([]string, error) {
	var stale []string
	for _, item := range m.Items {
		digest, _, err := common.Sha256OfFile(item.Path)
		if err != nil {
			return stale, err
		}
		if !strings.EqualFold(digest, item.Sha256) {
			stale = append(stale, item.Path)
		}
	}
	return stale, nil
}
