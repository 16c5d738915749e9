package devbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const multipartMemory = 8 << 20

// Supported upload types: the ones the OCR stage of the real service reads.
var supportedTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/png",
	"image/jpeg",
}

type healthResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Sessions int    `json:"sessions"`
	Versions int    `json:"versions"`
}

type uploadResponse struct {
	SessionID      string          `json:"session_id"`
	Clarifications []Clarification `json:"clarifications"`
	SyllabusData   map[string]any  `json:"syllabus_data"`
}

type refineRequest struct {
	SessionID string            `json:"session_id"`
	Answers   map[string]string `json:"answers"`
}

type refineResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, versions := s.store.counts()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "online",
		Message:  "Semester Planner API is active",
		Sessions: sessions,
		Versions: versions,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		writeDetail(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unable to read file")
		return
	}
	if len(data) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "file is empty")
		return
	}
	detected := mimetype.Detect(data)
	if !supported(detected) {
		s.logger.Warn("unsupported upload", zap.String("file", header.Filename), zap.String("type", detected.String()))
		writeDetail(w, http.StatusUnsupportedMediaType, "unsupported format")
		return
	}

	rec := sessionRecord{
		ID:             s.sessionID(),
		FileName:       filepath.Base(header.Filename),
		ContentType:    detected.String(),
		Size:           len(data),
		Clarifications: append([]Clarification(nil), s.fixture.Clarifications...),
		CreatedAt:      s.now(),
	}
	s.store.putSession(rec)
	s.logger.Info("session created", zap.String("session_id", rec.ID), zap.String("file", rec.FileName), zap.Int("clarifications", len(rec.Clarifications)))

	clarifications := rec.Clarifications
	if clarifications == nil {
		clarifications = []Clarification{}
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID:      rec.ID,
		Clarifications: clarifications,
		SyllabusData: map[string]any{
			"name":        s.fixture.Subject,
			"source_file": rec.FileName,
		},
	})
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	rec, ok := s.store.session(strings.TrimSpace(req.SessionID))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	for _, c := range rec.Clarifications {
		answer, ok := req.Answers[c.Field]
		if !ok {
			writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("missing answer for %s", c.Field))
			return
		}
		if s.fixture.numeric(c.Field) {
			if _, err := strconv.Atoi(strings.TrimSpace(answer)); err != nil {
				writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be a whole number", c.Field))
				return
			}
		}
	}

	artifact := Artifact{
		Version:              s.store.nextVersion(),
		SessionID:            rec.ID,
		Subject:              s.fixture.Subject,
		SourceFile:           rec.FileName,
		Answers:              req.Answers,
		DifficultyMultiplier: 1.0,
		CreatedAt:            s.now(),
	}
	if req.Answers["difficulty"] == "yes" {
		artifact.DifficultyMultiplier = 1.3
	}
	if req.Answers["revision"] == "yes" {
		artifact.RevisionWeeks = 2
	}
	s.store.putArtifact(artifact)
	s.logger.Info("plan generated", zap.String("session_id", rec.ID), zap.String("version", artifact.Version), zap.Int("answers", len(req.Answers)))
	writeJSON(w, http.StatusOK, refineResponse{Status: "success", Version: artifact.Version})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	artifact, ok := s.store.artifact(version)
	if !ok {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}
	body, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "unable to render plan")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="semester_plan_%s.json"`, version))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func supported(detected *mimetype.MIME) bool {
	for _, t := range supportedTypes {
		if detected.Is(t) {
			return true
		}
	}
	return false
}
