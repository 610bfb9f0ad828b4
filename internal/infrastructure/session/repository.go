// Package session implements domain/repository.SessionRepository: a
// gorm+sqlite catalogue for cheap listing, and a portable JSON snapshot
// file per session written atomically (temp file + rename) so a crash
// mid-write never corrupts the previous snapshot.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/repository"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/session/models"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
	"github.com/qi-prompt/qi-prompt/pkg/result"
)

// Repository is the gorm+JSON-file implementation of SessionRepository.
type Repository struct {
	db          *gorm.DB
	snapshotDir string
	logger      *zap.Logger
}

// NewRepository builds a Repository backed by db for the catalogue and
// snapshotDir for the per-session JSON files.
func NewRepository(db *gorm.DB, snapshotDir string, logger *zap.Logger) (*Repository, error) {
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Repository{db: db, snapshotDir: snapshotDir, logger: logger}, nil
}

var _ repository.SessionRepository = (*Repository)(nil)

func (r *Repository) snapshotPath(id string) string {
	return filepath.Join(r.snapshotDir, id+".json")
}

// Persist writes the snapshot to a temp file in the same directory, fsyncs,
// and renames it into place — the rename is atomic on the same filesystem,
// so a concurrent Load never observes a partially-written file. The
// catalogue row is then upserted to match.
func (r *Repository) Persist(ctx context.Context, snap entity.SessionSnapshot) result.Result[struct{}] {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to marshal session snapshot", err))
	}

	path := r.snapshotPath(snap.SessionID)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to create snapshot temp file", err))
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to write snapshot temp file", err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to fsync snapshot temp file", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to close snapshot temp file", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to rename snapshot into place", err))
	}

	row := models.SessionIndexModel{
		SessionID:    snap.SessionID,
		CreatedAt:    snap.CreatedAt,
		LastActiveAt: snap.LastActiveAt,
		EntryCount:   len(snap.Conversation),
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		r.logger.Warn("session index upsert failed, snapshot file is still authoritative", zap.Error(err))
	}

	return result.Ok(struct{}{})
}

// Load restores a snapshot from disk. A missing file is reported as an
// IsOk()==false Result whose AppError is nil — distinguishing "no session
// yet" from an actual I/O failure.
func (r *Repository) Load(ctx context.Context, id string) result.Result[*entity.SessionSnapshot] {
	data, err := os.ReadFile(r.snapshotPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result.Err[*entity.SessionSnapshot](nil)
		}
		return result.Err[*entity.SessionSnapshot](apperrors.WrapSystem(apperrors.CodeInternal, "failed to read session snapshot", err))
	}

	var snap entity.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return result.Err[*entity.SessionSnapshot](apperrors.WrapSystem(apperrors.CodeInternal, "failed to parse session snapshot", err))
	}
	return result.Ok(&snap)
}

// List returns the catalogue, most recently active first.
func (r *Repository) List(ctx context.Context) result.Result[[]entity.SessionSummary] {
	var rows []models.SessionIndexModel
	if err := r.db.WithContext(ctx).Order("last_active_at desc").Find(&rows).Error; err != nil {
		return result.Err[[]entity.SessionSummary](apperrors.WrapSystem(apperrors.CodeInternal, "failed to list session index", err))
	}

	summaries := make([]entity.SessionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, entity.SessionSummary{
			SessionID:    row.SessionID,
			CreatedAt:    row.CreatedAt,
			LastActiveAt: row.LastActiveAt,
			EntryCount:   row.EntryCount,
		})
	}
	return result.Ok(summaries)
}

// Delete removes a session's snapshot file and catalogue row. Deleting a
// snapshot that never existed is not an error.
func (r *Repository) Delete(ctx context.Context, id string) result.Result[struct{}] {
	path := r.snapshotPath(id)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to remove session snapshot", err))
	}

	if err := r.db.WithContext(ctx).Delete(&models.SessionIndexModel{}, "session_id = ?", id).Error; err != nil {
		return result.Err[struct{}](apperrors.WrapSystem(apperrors.CodeInternal, "failed to remove session index row", err))
	}
	return result.Ok(struct{}{})
}
