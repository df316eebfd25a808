// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agentwire/agentwire"
)

// DatabaseStore is a durable implementation of Store using GORM. Snapshots
// survive process restarts, which is what makes resubscription work across
// server instances sharing one database.
type DatabaseStore struct {
	db  *gorm.DB
	ttl time.Duration
}

var _ Store = (*DatabaseStore)(nil)

// DatabaseStoreConfig holds configuration for a DatabaseStore.
type DatabaseStoreConfig struct {
	// DB is the GORM database handle. Required.
	DB *gorm.DB

	// TTL is the snapshot retention window. Zero means DefaultTTL.
	TTL time.Duration

	// Migrate controls whether the tasks table is auto-migrated on creation.
	Migrate bool
}

// NewDatabaseStore creates a DatabaseStore with the given configuration.
func NewDatabaseStore(config DatabaseStoreConfig) (*DatabaseStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if config.Migrate {
		if err := config.DB.AutoMigrate(&taskRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate tasks table: %w", err)
		}
	}
	return &DatabaseStore{db: config.DB, ttl: ttl}, nil
}

// Save persists a task snapshot, creating or updating its row and refreshing
// its retention window.
func (s *DatabaseStore) Save(ctx context.Context, task *agentwire.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return NewStoreError("save", task.ID, err)
	}

	record, err := newTaskRecord(task, time.Now().Add(s.ttl))
	if err != nil {
		return NewStoreError("save", task.ID, err)
	}
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return NewStoreError("save", task.ID, err)
	}
	return nil
}

// Get retrieves a task snapshot by id. Rows past their retention window are
// reported as not found.
func (s *DatabaseStore) Get(ctx context.Context, taskID string) (*agentwire.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	var record taskRecord
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, agentwire.TaskNotFoundError{ID: taskID}
		}
		return nil, NewStoreError("get", taskID, err)
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, agentwire.TaskNotFoundError{ID: taskID}
	}
	return record.toTask()
}

// Delete removes a task snapshot.
func (s *DatabaseStore) Delete(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	result := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&taskRecord{})
	if result.Error != nil {
		return NewStoreError("delete", taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return agentwire.TaskNotFoundError{ID: taskID}
	}
	return nil
}

// List retrieves snapshots, optionally filtered by session id.
func (s *DatabaseStore) List(ctx context.Context, sessionID string, limit, offset int) ([]*agentwire.Task, error) {
	db := s.db.WithContext(ctx).Where("expires_at > ?", time.Now())
	if sessionID != "" {
		db = db.Where("session_id = ?", sessionID)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var records []taskRecord
	if err := db.Order("id").Find(&records).Error; err != nil {
		return nil, NewStoreError("list", "", err)
	}

	tasks := make([]*agentwire.Task, 0, len(records))
	for _, record := range records {
		task, err := record.toTask()
		if err != nil {
			return nil, NewStoreError("list", record.ID, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// PurgeExpired removes rows whose retention window has passed and returns
// how many were removed.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&taskRecord{})
	if result.Error != nil {
		return 0, NewStoreError("purge", "", result.Error)
	}
	return result.RowsAffected, nil
}

// Close shuts down the underlying database connection.
func (s *DatabaseStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database connection: %w", err)
	}
	return sqlDB.Close()
}
