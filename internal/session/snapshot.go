package session

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Snapshot is a flat summary of a State for logs and status lines.
type Snapshot struct {
	Phase     string `json:"phase"`
	File      string `json:"file,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Step      int    `json:"step"`
	Total     int    `json:"total"`
	Answered  int    `json:"answered"`
	Busy      bool   `json:"busy"`
	Pending   bool   `json:"pending_finalize,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Snapshot summarises s. Step is 1-based and 0 outside the interview.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:     s.Phase.String(),
		File:      s.FileName,
		SessionID: s.SessionID,
		Total:     s.Queue.Len(),
		Answered:  s.Answers.Len(),
		Busy:      s.Busy,
		Pending:   s.PendingFinalize,
		Version:   s.Version(),
		Error:     s.Message,
	}
	if s.Phase == PhaseInterview {
		snap.Step = s.Cursor + 1
	}
	return snap
}

// Progress renders "step/total", or "" outside the interview.
func (s Snapshot) Progress() string {
	if s.Step == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", s.Step, s.Total)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("phase", s.Phase)
	if s.File != "" {
		enc.AddString("file", s.File)
	}
	if s.SessionID != "" {
		enc.AddString("session_id", s.SessionID)
	}
	if s.Step > 0 {
		enc.AddString("progress", s.Progress())
	}
	enc.AddInt("answered", s.Answered)
	enc.AddBool("busy", s.Busy)
	if s.Pending {
		enc.AddBool("pending_finalize", true)
	}
	if s.Version != "" {
		enc.AddString("version", s.Version)
	}
	return nil
}
