package journal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Guess is one submitted answer. Rows are written and never read back by
// the server.
type Guess struct {
	ID        uint   `gorm:"primaryKey"`
	Team      string `gorm:"index;size:128"`
	Session   string `gorm:"size:64"`
	Who       string `gorm:"size:128"`
	Raw       string
	Canonical string
	Solved    bool
	CreatedAt time.Time
}

func (Guess) TableName() string { return "guesses" }

type Recorder interface {
	Record(ctx context.Context, g Guess) error
	Close() error
}

// Nop drops every guess. Used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Guess) error { return nil }
func (Nop) Close() error                        { return nil }

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to postgres and migrates the guesses table. An empty dsn
// gives a Nop recorder.
func Open(dsn string, log *zap.Logger) (Recorder, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.AutoMigrate(&Guess{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	log.Info("guess journal enabled")
	return &Store{db: db, log: log}, nil
}

func (s *Store) Record(ctx context.Context, g Guess) error {
	if err := s.db.WithContext(ctx).Create(&g).Error; err != nil {
		return fmt.Errorf("record guess: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
