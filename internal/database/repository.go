package database

import (
	"time"

	"github.com/tapsum/tapsum/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for the event journal
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateEvent inserts a classified interaction event into the journal
func (r *Repository) CreateEvent(event *models.EventRecord) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert event record")
	}
	return nil
}

// GetEventsSince retrieves all journaled events since a given time
func (r *Repository) GetEventsSince(since time.Time) ([]*models.EventRecord, error) {
	var events []*models.EventRecord
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query event records")
	}

	return events, nil
}

// GetLatestEvent retrieves the most recent journaled event
func (r *Repository) GetLatestEvent() (*models.EventRecord, error) {
	var event models.EventRecord
	result := r.db.Order("timestamp DESC").First(&event)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// GetEventCountsSince returns per-package journal counts since a given time.
// SQL does the grouping; the reporter joins these against the usage snapshot.
func (r *Repository) GetEventCountsSince(since time.Time) ([]models.EventCount, error) {
	var counts []models.EventCount

	result := r.db.Model(&models.EventRecord{}).
		Select("package_name, COUNT(*) as count").
		Where("timestamp >= ?", since).
		Group("package_name").
		Order("count DESC").
		Scan(&counts)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query event counts")
	}

	return counts, nil
}

// DeleteOldEvents deletes journal entries older than a specified date
func (r *Repository) DeleteOldEvents(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.EventRecord{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old events")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// Clear removes all journaled events from the database
func (r *Repository) Clear() error {
	result := r.db.Exec("DELETE FROM event_records")
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear event records")
	}
	return nil
}
