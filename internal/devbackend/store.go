package devbackend

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type sessionRecord struct {
	ID             string
	FileName       string
	ContentType    string
	Size           int
	Clarifications []Clarification
	CreatedAt      time.Time
}

// Artifact is the generated plan for one version.
type Artifact struct {
	Version              string            `json:"version"`
	SessionID            string            `json:"session_id"`
	Subject              string            `json:"subject"`
	SourceFile           string            `json:"source_file"`
	Answers              map[string]string `json:"answers"`
	DifficultyMultiplier float64           `json:"difficulty_multiplier"`
	RevisionWeeks        int               `json:"revision_weeks"`
	CreatedAt            time.Time         `json:"created_at"`
}

// store keeps sessions and artifacts in TTL caches and hands out
// monotonically increasing versions (v1, v2, ...).
type store struct {
	sessions  *cache.Cache
	artifacts *cache.Cache

	mu          sync.Mutex
	lastVersion int
}

func newStore(ttl time.Duration) *store {
	cleanup := ttl / 6
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &store{
		sessions:  cache.New(ttl, cleanup),
		artifacts: cache.New(ttl, cleanup),
	}
}

func (s *store) putSession(rec sessionRecord) {
	s.sessions.Set(rec.ID, rec, cache.DefaultExpiration)
}

func (s *store) session(id string) (sessionRecord, bool) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return sessionRecord{}, false
	}
	rec, ok := v.(sessionRecord)
	return rec, ok
}

func (s *store) nextVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVersion++
	return fmt.Sprintf("v%d", s.lastVersion)
}

func (s *store) putArtifact(a Artifact) {
	s.artifacts.Set(a.Version, a, cache.DefaultExpiration)
}

func (s *store) artifact(version string) (Artifact, bool) {
	v, ok := s.artifacts.Get(version)
	if !ok {
		return Artifact{}, false
	}
	a, ok := v.(Artifact)
	return a, ok
}

func (s *store) counts() (sessions, artifacts int) {
	return s.sessions.ItemCount(), s.artifacts.ItemCount()
}
