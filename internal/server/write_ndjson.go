package server

import (
	"encoding/json"
	"io"
	"net/http"

	"example.com/uf2forge/internal/rules"
)

// NDJSONWriter streams one JSON object per line and flushes after each
// write so long validations show findings as they are produced.
type NDJSONWriter struct {
	w       io.Writer
	flusher http.Flusher
	enc     *json.Encoder
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	nw := &NDJSONWriter{w: w, enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		nw.flusher = f
	}
	return nw
}

func (nw *NDJSONWriter) WriteDiagnostic(d rules.Diagnostic) error {
	return nw.WriteObject(d)
}

func (nw *NDJSONWriter) WriteObject(v any) error {
	if err := nw.enc.Encode(v); err != nil {
		return err
	}
	if nw.flusher != nil {
		nw.flusher.Flush()
	}
	return nil
}
