package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/merge", s.handleMerge)
	mux.HandleFunc("/validate", s.handleValidate)
	mux.HandleFunc("/inspect", s.handleInspect)
	mux.HandleFunc("/manifest", s.handleManifest)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/artifacts/", s.handleArtifactDownload)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}
