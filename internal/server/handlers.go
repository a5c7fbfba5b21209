package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"uiforge/internal/logging"
	"uiforge/internal/pipeline"
	"uiforge/internal/store"
	"uiforge/internal/types"
)

// ChatRequest is the body of POST /api/chat/. File holds base64 content of
// an optional attachment.
type ChatRequest struct {
	Content  string `json:"content"`
	Optimize *bool  `json:"optimize,omitempty"`
	File     string `json:"file,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// ChatResponse is returned for a successful run. FinalCode is the artifact
// object, or a string when only best-effort text was produced.
type ChatResponse struct {
	FinalCode  interface{} `json:"final_code"`
	ArtifactID string      `json:"artifact_id,omitempty"`
	URL        string      `json:"url,omitempty"`
	RunID      string      `json:"run_id"`
	Category   string      `json:"category,omitempty"`
	Optimized  bool        `json:"optimized"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to UIForge"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.Subscribers(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	spec := types.TaskSpecification{Content: req.Content}
	if attachment, ok := decodeAttachment(req.File); ok {
		spec.Attachment = attachment
		spec.AttachmentName = req.FileName
	} else if req.File != "" {
		logging.Server("ignoring undecodable attachment (%d bytes)", len(req.File))
	}

	optimize := s.cfg.OptimizeDefault
	if req.Optimize != nil {
		optimize = *req.Optimize
	}

	if err := s.runs.Acquire(r.Context(), 1); err != nil {
		// Client went away while queued.
		return
	}
	defer s.runs.Release(1)

	// A run is not abandoned when the client disconnects.
	out, err := s.runner.Run(context.WithoutCancel(r.Context()), spec, optimize)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "internal error"
		if errors.Is(err, types.ErrConfiguration) {
			msg = "service is not configured: " + err.Error()
		}
		logging.ServerError("chat run failed: %v", err)
		writeError(w, status, msg)
		return
	}

	if out.Failed() {
		s.log.Info("run failed",
			zap.String("run_id", out.RunID),
			zap.String("stage", string(out.FailedStage)),
		)
		writeJSON(w, http.StatusBadGateway, out.Failure)
		return
	}

	resp := ChatResponse{
		RunID:     out.RunID,
		Category:  string(out.Category),
		Optimized: out.Optimized,
	}
	if out.Artifact != nil {
		resp.FinalCode = out.Artifact
	} else {
		resp.FinalCode = out.Raw
	}
	if out.Publication != nil {
		resp.ArtifactID = out.Publication.ID
		resp.URL = out.Publication.URL
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeAttachment decodes base64 file content. Empty or undecodable content
// is reported as absent.
func decodeAttachment(encoded string) (string, bool) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", false
	}
	// Data URLs carry a "data:<mime>;base64," prefix.
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return "", false
		}
	}
	if len(strings.TrimSpace(string(data))) == 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		writeError(w, http.StatusNotFound, "artifact storage is disabled")
		return
	}

	rec, err := s.artifacts.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	if err != nil {
		logging.ServerError("artifact lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rec.Document))
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		writeError(w, http.StatusNotFound, "artifact storage is disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.artifacts.List(r.Context(), limit)
	if err != nil {
		logging.ServerError("artifact list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []store.StoredArtifact{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRunTraces(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeError(w, http.StatusNotFound, "tracing is disabled")
		return
	}

	traces, err := s.traces.RunTraces(r.Context(), r.PathValue("id"))
	if err != nil {
		logging.ServerError("trace lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": r.PathValue("id"),
		"traces": traces,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeError(w, http.StatusNotFound, "tracing is disabled")
		return
	}

	stats, err := s.traces.Stats(r.Context())
	if err != nil {
		logging.ServerError("stats failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": stats})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pipeline.ErrorResult{Error: msg})
}
