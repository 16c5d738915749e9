// Package gateway talks to the planner service: it starts a session from an
// uploaded document and finalizes it from the collected answers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kingrea/semester-planner/internal/clarify"
)

// Gateway is the boundary the session state machine depends on.
type Gateway interface {
	// StartSession uploads a document and returns the session id and the
	// clarifications the service needs answered.
	StartSession(ctx context.Context, file File) (StartResult, error)
	// FinalizeSession submits every answer and returns the artifact version.
	FinalizeSession(ctx context.Context, sessionID string, answers map[string]string) (FinalizeResult, error)
	// DownloadURL builds the retrieval reference for a finalized version.
	DownloadURL(version string) string
}

// File is an uploaded document.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// StartResult is the service's answer to an upload.
type StartResult struct {
	SessionID      string
	Clarifications []clarify.Task
}

// FinalizeResult describes the generated artifact.
type FinalizeResult struct {
	Version string
}

type clarificationDTO struct {
	Field    string `json:"field"`
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

type uploadResponse struct {
	SessionID      string             `json:"session_id"`
	Clarifications []clarificationDTO `json:"clarifications"`
}

type refineRequest struct {
	SessionID string            `json:"session_id"`
	Answers   map[string]string `json:"answers"`
}

type refineResponse struct {
	Status  string  `json:"status,omitempty"`
	Version Version `json:"version"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Version accepts a JSON string or number and keeps its textual form.
type Version string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Version) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Version(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("version must be a string or number: %w", err)
	}
	*v = Version(n.String())
	return nil
}

func (r uploadResponse) result() StartResult {
	tasks := make([]clarify.Task, 0, len(r.Clarifications))
	for _, c := range r.Clarifications {
		tasks = append(tasks, clarify.Task{
			Field:    c.Field,
			Question: c.Question,
			Context:  c.Context,
			Source:   clarify.SourceBackend,
		})
	}
	return StartResult{SessionID: r.SessionID, Clarifications: tasks}
}
