// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/agentwire/agentwire"
)

// taskRecord is the database row backing one task snapshot. Structured
// columns are stored as JSON so the row layout stays stable while the wire
// types evolve.
type taskRecord struct {
	ID        string       `gorm:"primaryKey;size:64"`
	SessionID string       `gorm:"index;size:64"`
	Status    statusColumn `gorm:"type:text"`
	History   jsonColumn   `gorm:"type:text"`
	Artifacts jsonColumn   `gorm:"type:text"`
	Metadata  jsonColumn   `gorm:"type:text"`
	ExpiresAt time.Time    `gorm:"index"`
	UpdatedAt time.Time
}

// TableName sets the table name for GORM.
func (taskRecord) TableName() string { return "tasks" }

func newTaskRecord(task *agentwire.Task, expiresAt time.Time) (*taskRecord, error) {
	record := &taskRecord{
		ID:        task.ID,
		SessionID: task.SessionID,
		Status:    statusColumn{task.Status},
		ExpiresAt: expiresAt,
	}
	if err := record.History.set(task.History); err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	if err := record.Artifacts.set(task.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to encode artifacts: %w", err)
	}
	if err := record.Metadata.set(task.Metadata); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return record, nil
}

func (r *taskRecord) toTask() (*agentwire.Task, error) {
	task := &agentwire.Task{
		ID:        r.ID,
		SessionID: r.SessionID,
		Status:    r.Status.TaskStatus,
	}
	if err := r.History.get(&task.History); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if err := r.Artifacts.get(&task.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}
	if err := r.Metadata.get(&task.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return task, nil
}

// statusColumn stores a TaskStatus as a JSON text column.
type statusColumn struct {
	agentwire.TaskStatus
}

// Value implements driver.Valuer.
func (c statusColumn) Value() (driver.Value, error) {
	data, err := json.Marshal(c.TaskStatus)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (c *statusColumn) Scan(value any) error {
	data, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into status column: %w", value, err)
	}
	if data == nil {
		c.TaskStatus = agentwire.TaskStatus{}
		return nil
	}
	return json.Unmarshal(data, &c.TaskStatus)
}

// jsonColumn stores an arbitrary JSON document as a nullable text column.
type jsonColumn struct {
	raw []byte
}

func (c *jsonColumn) set(v any) error {
	if v == nil {
		c.raw = nil
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if string(data) == "null" {
		c.raw = nil
		return nil
	}
	c.raw = data
	return nil
}

func (c *jsonColumn) get(out any) error {
	if c.raw == nil {
		return nil
	}
	return json.Unmarshal(c.raw, out)
}

// Value implements driver.Valuer.
func (c jsonColumn) Value() (driver.Value, error) {
	if c.raw == nil {
		return nil, nil
	}
	return string(c.raw), nil
}

// Scan implements sql.Scanner.
func (c *jsonColumn) Scan(value any) error {
	data, err := columnBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into json column: %w", value, err)
	}
	c.raw = data
	return nil
}

func columnBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type")
	}
}
