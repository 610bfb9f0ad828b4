package models

import "time"

// SessionIndexModel is the sqlite-indexed catalogue row for one session.
// It mirrors the snapshot file's cheap-to-query metadata only; the
// conversation body itself lives in the JSON snapshot file, not here.
type SessionIndexModel struct {
	SessionID    string `gorm:"primaryKey;size:64"`
	CreatedAt    time.Time
	LastActiveAt time.Time `gorm:"index"`
	EntryCount   int
}

// TableName pins the table name independent of struct renames.
func (SessionIndexModel) TableName() string {
	return "session_index"
}
