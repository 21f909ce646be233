// Package session stores the append-only message log of each research
// session together with the checkpoint the scheduler resumes from.
//
// Two backends are provided: an in-memory store that loses everything on
// restart, and a SQLite store that survives it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// Sentinel errors for store operations. Store failures are fatal to the
// caller: a session log that silently lost a write cannot be trusted.
var (
	ErrStoreFailed  = errors.New("session store failed")
	ErrNoCheckpoint = errors.New("no checkpoint for session")
	ErrEmptyID      = errors.New("session id is empty")
)

// NewID returns a fresh opaque session identifier (UUIDv7).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Checkpoint records where a session's scheduler stopped. State names the
// next state to run; Meta carries whatever the scheduler needs to rebuild
// its prompt (for example the research request).
type Checkpoint struct {
	SessionID string            `cbor:"1,keyasint"`
	State     string            `cbor:"2,keyasint"`
	Step      int               `cbor:"3,keyasint"`
	Meta      map[string]string `cbor:"4,keyasint,omitempty"`
	UpdatedAt time.Time         `cbor:"-"`
}

// Store is a keyed, append-only message log with resumable checkpoints.
// Implementations must be safe for concurrent use across sessions.
type Store interface {
	// Append adds messages to the end of the session's log, creating the
	// session on first use.
	Append(ctx context.Context, id string, msgs ...protocol.Message) error
	// Get returns the session's log in append order. An unknown session
	// has an empty log.
	Get(ctx context.Context, id string) ([]protocol.Message, error)
	// Clear removes the session's log and checkpoint.
	Clear(ctx context.Context, id string) error
	// SaveCheckpoint creates or replaces the session's checkpoint.
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	// LoadCheckpoint returns ErrNoCheckpoint when none was saved.
	LoadCheckpoint(ctx context.Context, id string) (Checkpoint, error)
	// Close releases the store's resources.
	Close() error
}

// Session binds a Store to one session id.
type Session struct {
	id    string
	store Store
}

// Open returns the session with the given id. An empty id generates a new
// one.
func Open(store Store, id string) *Session {
	if id == "" {
		id = NewID()
	}
	return &Session{id: id, store: store}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AddMessage appends msgs to the session log.
func (s *Session) AddMessage(ctx context.Context, msgs ...protocol.Message) error {
	return s.store.Append(ctx, s.id, msgs...)
}

// Messages returns the session log.
func (s *Session) Messages(ctx context.Context) ([]protocol.Message, error) {
	return s.store.Get(ctx, s.id)
}

// Checkpoint saves the scheduler position for this session.
func (s *Session) Checkpoint(ctx context.Context, state string, step int, meta map[string]string) error {
	return s.store.SaveCheckpoint(ctx, Checkpoint{SessionID: s.id, State: state, Step: step, Meta: meta})
}

// LastCheckpoint loads this session's checkpoint.
func (s *Session) LastCheckpoint(ctx context.Context) (Checkpoint, error) {
	return s.store.LoadCheckpoint(ctx, s.id)
}

// Clear removes the log and checkpoint.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.id)
}
