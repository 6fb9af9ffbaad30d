package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"example.com/uf2forge/internal/common"
	"example.com/uf2forge/internal/manifest"
	"example.com/uf2forge/internal/report"
	"example.com/uf2forge/internal/rules"
	"example.com/uf2forge/internal/script"
	"example.com/uf2forge/internal/uf2"
)

// maxScriptUpload bounds the multipart form size for merge requests.
// Scripts are at most 16 KiB; the base image dominates.
const maxScriptUpload = 64 << 20

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxScriptUpload); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	device, layout, err := s.layoutForRequest(r.FormValue("device"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scriptBytes, err := formFileBytes(r, "script")
	if err != nil {
		http.Error(w, fmt.Sprintf("script: %v", err), http.StatusBadRequest)
		return
	}
	baseBytes, err := optionalFormFileBytes(r, "base")
	if err != nil {
		http.Error(w, fmt.Sprintf("base: %v", err), http.StatusBadRequest)
		return
	}

	out, err := script.Embed(baseBytes, scriptBytes, layout)
	if err != nil {
		s.metrics.AddFailure()
		s.appendAudit(common.AuditEntry{
			Operation: "merge", Device: device,
			InputSha: common.Sha256OfBytes(baseBytes), Error: err.Error(),
		})
		status := http.StatusUnprocessableEntity
		if errors.Is(err, uf2.ErrMalformedContainer) || errors.Is(err, script.ErrScriptTooLarge) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.metrics.AddBuild(int64(len(baseBytes)+len(scriptBytes)), int64(len(out)))

	outPath, err := s.tempPath("image-*.uf2")
	if err != nil {
		http.Error(w, fmt.Sprintf("image temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		http.Error(w, fmt.Sprintf("write image: %v", err), http.StatusInternalServerError)
		return
	}
	imageArt, err := s.addArtifact(outPath, "image.uf2", "application/octet-stream", "image")
	if err != nil {
		http.Error(w, fmt.Sprintf("register image: %v", err), http.StatusInternalServerError)
		return
	}

	info := report.BuildInfo{
		Device:     device,
		OutputPath: imageArt.Name,
		OutputSha:  common.Sha256OfBytes(out),
		OutputSize: int64(len(out)),
		Blocks:     len(out) / uf2.BlockSize,
		ScriptName: script.DeriveName(scriptBytes),
		ScriptLen:  len(scriptBytes),
	}
	s.appendAudit(common.AuditEntry{
		Operation: "merge", Device: device,
		InputSha: common.Sha256OfBytes(baseBytes), OutputSha: info.OutputSha,
		ScriptName: info.ScriptName, ScriptLen: info.ScriptLen,
	})

	rep, diagArt, pdfArt, err := s.runAcceptance(out, device, layout, info)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := struct {
		Build      report.BuildInfo       `json:"build"`
		Acceptance rules.AcceptanceReport `json:"acceptance"`
		Artifacts  []ArtifactRef          `json:"artifacts"`
	}{
		Build:      info,
		Acceptance: rep,
		Artifacts:  []ArtifactRef{toRef(imageArt), toRef(diagArt), toRef(pdfArt)},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runAcceptance(image []byte, device string, layout uf2.Layout, info report.BuildInfo) (rules.AcceptanceReport, Artifact, Artifact, error) {
	engine := rules.NewEngine(rules.DefaultRulePack(device))
	engine.RegisterBuiltins()
	if _, err := engine.Eval(&rules.Context{InputFile: info.OutputPath, Image: image, Layout: layout}); err != nil {
		return rules.AcceptanceReport{}, Artifact{}, Artifact{}, fmt.Errorf("eval: %w", err)
	}
	s.metrics.AddValidation()
	rep := engine.MakeAcceptance()

	diagPath, err := s.tempPath("diagnostics-*.ndjson")
	if err != nil {
		return rep, Artifact{}, Artifact{}, err
	}
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		return rep, Artifact{}, Artifact{}, fmt.Errorf("write diagnostics: %w", err)
	}
	diagArt, err := s.addArtifact(diagPath, "diagnostics.ndjson", "application/x-ndjson", "diagnostics")
	if err != nil {
		return rep, Artifact{}, Artifact{}, err
	}

	pdfPath, err := s.tempPath("flash-report-*.pdf")
	if err != nil {
		return rep, diagArt, Artifact{}, err
	}
	if err := report.SaveFlashReportPDF(info, rep, pdfPath); err != nil {
		return rep, diagArt, Artifact{}, fmt.Errorf("write report: %w", err)
	}
	pdfArt, err := s.addArtifact(pdfPath, "flash_report.pdf", "application/pdf", "report")
	if err != nil {
		return rep, diagArt, Artifact{}, err
	}
	return rep, diagArt, pdfArt, nil
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req struct {
		Input  string `json:"input"`
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Input == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	device, layout, err := s.layoutForRequest(req.Device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	image, err := os.ReadFile(inputPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("read input: %v", err), http.StatusBadRequest)
		return
	}

	engine := rules.NewEngine(rules.DefaultRulePack(device))
	engine.RegisterBuiltins()
	diags, err := engine.Eval(&rules.Context{InputFile: inputPath, Image: image, Layout: layout})
	if err != nil {
		http.Error(w, fmt.Sprintf("eval: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.AddValidation()
	rep := engine.MakeAcceptance()

	if stream {
		w.Header().Set("Content-Type", "application/x-ndjson")
		writer := NewNDJSONWriter(w)
		for _, d := range diags {
			if err := writer.WriteDiagnostic(d); err != nil {
				return
			}
		}
		_ = writer.WriteObject(map[string]any{
			"type":       "acceptance",
			"acceptance": rep,
		})
		return
	}

	diagPath, err := s.tempPath("diagnostics-*.ndjson")
	if err != nil {
		http.Error(w, fmt.Sprintf("diagnostics temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		http.Error(w, fmt.Sprintf("write diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	diagArt, err := s.addArtifact(diagPath, "diagnostics.ndjson", "application/x-ndjson", "diagnostics")
	if err != nil {
		http.Error(w, fmt.Sprintf("register diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Acceptance  rules.AcceptanceReport `json:"acceptance"`
		Diagnostics int                    `json:"diagnostics"`
		Artifacts   []ArtifactRef          `json:"artifacts"`
	}{
		Acceptance:  rep,
		Diagnostics: len(diags),
		Artifacts:   []ArtifactRef{toRef(diagArt)},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Input  string `json:"input"`
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Input == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	_, layout, err := s.layoutForRequest(req.Device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	image, err := os.ReadFile(inputPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("read input: %v", err), http.StatusBadRequest)
		return
	}
	info, err := script.Extract(image, layout)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, uf2.ErrMalformedContainer) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	resp := struct {
		Name    string `json:"name"`
		Present bool   `json:"present"`
		Cleared bool   `json:"cleared"`
		Length  int    `json:"length"`
		Script  string `json:"script,omitempty"`
	}{
		Name:    info.Name,
		Present: info.Present,
		Cleared: info.Cleared,
		Length:  len(info.Script),
		Script:  string(info.Script),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Inputs []string `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "inputs required", http.StatusBadRequest)
		return
	}
	var paths []string
	for _, in := range req.Inputs {
		resolved, err := s.resolvePath(in)
		if err != nil {
			http.Error(w, fmt.Sprintf("resolve %s: %v", in, err), http.StatusBadRequest)
			return
		}
		paths = append(paths, resolved)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	outPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := manifest.Save(m, outPath); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	art, err := s.addArtifact(outPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Manifest manifest.Manifest `json:"manifest"`
		Artifact ArtifactRef       `json:"artifact"`
	}{
		Manifest: m,
		Artifact: toRef(art),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type device struct {
		Name        string `json:"name"`
		RegionStart string `json:"regionStart"`
		RegionEnd   string `json:"regionEnd"`
		MaxScript   int    `json:"maxScript"`
		Default     bool   `json:"default"`
	}
	var out []device
	for _, name := range uf2.Devices() {
		l, err := uf2.LayoutFor(name)
		if err != nil {
			continue
		}
		out = append(out, device{
			Name:        name,
			RegionStart: fmt.Sprintf("0x%08X", l.RegionStart()),
			RegionEnd:   fmt.Sprintf("0x%08X", l.RegionEnd()),
			MaxScript:   script.MaxScriptLen,
			Default:     name == s.defaultDevice,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		writeJSON(w, http.StatusOK, s.listArtifacts())
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	io.Copy(w, f)
}

func (s *Server) appendAudit(entry common.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(entry); err != nil {
		common.Logf("audit append: %v", err)
	}
}
