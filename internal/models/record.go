package models

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is the journaled form of a classified interaction event.
// The journal exists for reporting; the aggregation state itself is
// never persisted and does not survive a restart.
type EventRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Timestamp   time.Time      `gorm:"not null;index" json:"timestamp"`
	PackageName string         `gorm:"not null;index" json:"package_name"`
	Kind        string         `gorm:"not null" json:"kind"`
	Description string         `gorm:"not null" json:"description"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ErrorLog is a journaled capture-loop failure. The loop itself never
// stops on an error; it records it here and moves on.
type ErrorLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	ErrorMsg  string         `gorm:"not null" json:"error_msg"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// EventCount is the per-package journal count used by reports.
type EventCount struct {
	PackageName string `json:"package_name"`
	Count       int64  `json:"count"`
}
