package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// maxUploadBytes bounds standalone artifact uploads. Full-flash images
// for the supported devices are a few MiB.
const maxUploadBytes = 64 << 20

// formFileBytes reads a required multipart file field into memory.
func formFileBytes(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing form file %q: %w", field, err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxUploadBytes {
		return nil, errors.New("upload too large")
	}
	return b, nil
}

// optionalFormFileBytes is formFileBytes for fields that may be absent.
// A missing field returns nil bytes and no error.
func optionalFormFileBytes(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxUploadBytes {
		return nil, errors.New("upload too large")
	}
	return b, nil
}

// handleUpload accepts a multipart file and registers it as an artifact
// so later validate and inspect requests can reference it by id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("missing form file %q: %v", "file", err), http.StatusBadRequest)
		return
	}
	defer f.Close()

	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.bin"
	}
	dstPath := filepath.Join(s.uploadsDir, fmt.Sprintf("%s-%s", randomID(), name))
	dst, err := os.Create(dstPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("create upload: %v", err), http.StatusInternalServerError)
		return
	}
	n, err := io.Copy(dst, io.LimitReader(f, maxUploadBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dstPath)
		http.Error(w, fmt.Sprintf("save upload: %v", err), http.StatusInternalServerError)
		return
	}
	if n > maxUploadBytes {
		os.Remove(dstPath)
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}

	art, err := s.addArtifact(dstPath, name, guessContentType(name), "upload")
	if err != nil {
		http.Error(w, fmt.Sprintf("register upload: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toRef(art))
}
