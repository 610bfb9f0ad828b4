package session

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qi-prompt/qi-prompt/internal/infrastructure/config"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/session/models"
)

// NewIndexDB opens the session catalogue database named by cfg.IndexDialect
// / cfg.IndexDSN and migrates its single table.
func NewIndexDB(cfg config.SessionConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.IndexDialect {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.IndexDSN)
	case "postgres":
		dialector = postgres.Open(cfg.IndexDSN)
	default:
		return nil, fmt.Errorf("unsupported session index dialect: %s", cfg.IndexDialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session index: %w", err)
	}

	if err := db.AutoMigrate(&models.SessionIndexModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session index: %w", err)
	}

	return db, nil
}
