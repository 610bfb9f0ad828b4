package repository

import (
	"context"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
	"github.com/qi-prompt/qi-prompt/pkg/result"
)

// SessionRepository persists SessionState snapshots and answers the
// session catalogue query (List). Writes are
// best-effort and crash-safe (atomic write-temp-then-rename); failures are
// SYSTEM errors that the orchestrator logs but never lets block.
type SessionRepository interface {
	// Persist writes a snapshot atomically under the session's id.
	Persist(ctx context.Context, snap entity.SessionSnapshot) result.Result[struct{}]
	// Load restores a previously persisted session, or IsOk()==false with a
	// nil error.AppError when none exists for the given id.
	Load(ctx context.Context, id string) result.Result[*entity.SessionSnapshot]
	// List returns the catalogue of known sessions, most recently active
	// first.
	List(ctx context.Context) result.Result[[]entity.SessionSummary]
	// Delete removes a session's snapshot and catalogue entry.
	Delete(ctx context.Context, id string) result.Result[struct{}]
}

// ErrSessionNotFound is a not-found AppError for a session id. Load does
// not return it: a missing snapshot is a failure Result with a nil error,
// as described on Load above.
var ErrSessionNotFound = apperrors.NewBusiness(apperrors.CodeNotFound, "session not found")
