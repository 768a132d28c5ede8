package chatbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/boat-builder/chatbridge/memory"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ Storage = &PostgresStorage{}

type memoryRecord struct {
	UserID    string `gorm:"primaryKey;column:user_id"`
	Version   int    `gorm:"not null"`
	State     string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (memoryRecord) TableName() string {
	return "chatbridge_memories"
}

// PostgresStorage keeps one row per user in a shared postgres database.
type PostgresStorage struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&memoryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresStorage{db: db, logger: slog.Default()}, nil
}

func (s *PostgresStorage) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *PostgresStorage) LoadAll(ctx context.Context) (map[string]memory.State, error) {
	var records []memoryRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	users := make(map[string]memory.State, len(records))
	for _, record := range records {
		state, err := decodeState(record.Version, record.State)
		if err != nil {
			s.logger.Error("skipping unreadable memory row", "userID", record.UserID, "error", err)
			continue
		}
		users[record.UserID] = state
	}
	return users, nil
}

func (s *PostgresStorage) SaveAll(ctx context.Context, users map[string]memory.State) error {
	records, err := toMemoryRecords(users, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"version", "state", "updated_at"}),
			}).Create(&records).Error
			if err != nil {
				return fmt.Errorf("failed to save memories: %w", err)
			}
		}
		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.UserID)
		}
		var result *gorm.DB
		if len(ids) > 0 {
			result = tx.Where("user_id NOT IN ?", ids).Delete(&memoryRecord{})
		} else {
			result = tx.Where("1 = 1").Delete(&memoryRecord{})
		}
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to delete stale memories: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toMemoryRecords(users map[string]memory.State, now time.Time) ([]memoryRecord, error) {
	records := make([]memoryRecord, 0, len(users))
	for userID, state := range users {
		data, err := encodeState(state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode memory of %s: %w", userID, err)
		}
		records = append(records, memoryRecord{
			UserID:    userID,
			Version:   SnapshotVersion,
			State:     data,
			UpdatedAt: now,
		})
	}
	return records, nil
}
