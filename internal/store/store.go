package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fish-feeder-backend/internal/model"
)

// ErrScheduleNotFound is returned when an operation references a schedule
// id that is not in the store.
var ErrScheduleNotFound = errors.New("schedule not found")

// Defaults for the bounded feeding-log window.
const (
	DefaultFeedingLimit  = 20
	DefaultFeedingWindow = 14 * 24 * time.Hour
)

// Store defines the interface for all database operations: the feeding
// ledger, the device settings singleton, the schedule set, and the push
// subscription list.
type Store interface {
	AddFeeding(ctx context.Context, requestedAt time.Time) (model.Feeding, error)
	RecordFed(ctx context.Context, feedingID int64, fedAt time.Time) (model.Feeding, error)
	ListFeedings(ctx context.Context, limit int, since *time.Time) ([]model.Feeding, error)

	FeedAngle(ctx context.Context) (float64, error)
	SetFeedAngle(ctx context.Context, angle float64) error

	AddSchedule(ctx context.Context, mode model.ScheduleMode, timeOfDay *model.TimeOfDay) (model.Schedule, error)
	UpdateSchedule(ctx context.Context, scheduleID int64, timeOfDay model.TimeOfDay) (model.Schedule, error)
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	RemoveSchedule(ctx context.Context, scheduleID int64) error

	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	SaveSubscription(ctx context.Context, sub model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// AddFeeding inserts a new ledger entry with only the requested timestamp.
func (s *gormStore) AddFeeding(ctx context.Context, requestedAt time.Time) (model.Feeding, error) {
	feeding := model.Feeding{TimeRequested: requestedAt}
	if err := s.db.WithContext(ctx).Create(&feeding).Error; err != nil {
		return model.Feeding{}, fmt.Errorf("add feeding: %w", err)
	}
	return feeding, nil
}

// RecordFed sets the fed timestamp on a feeding. The timestamp is written
// at most once; a feeding that is already fed is returned unchanged.
func (s *gormStore) RecordFed(ctx context.Context, feedingID int64, fedAt time.Time) (model.Feeding, error) {
	var feeding model.Feeding
	if err := s.db.WithContext(ctx).First(&feeding, feedingID).Error; err != nil {
		return model.Feeding{}, fmt.Errorf("record fed: %w", err)
	}
	if feeding.TimeFed != nil {
		return feeding, nil
	}
	feeding.TimeFed = &fedAt
	if err := s.db.WithContext(ctx).Save(&feeding).Error; err != nil {
		return model.Feeding{}, fmt.Errorf("record fed: %w", err)
	}
	return feeding, nil
}

// ListFeedings returns at most limit entries requested after since, newest
// first. This is a bounded window query, not a full scan.
func (s *gormStore) ListFeedings(ctx context.Context, limit int, since *time.Time) ([]model.Feeding, error) {
	if limit <= 0 {
		limit = DefaultFeedingLimit
	}
	cutoff := time.Now().Add(-DefaultFeedingWindow)
	if since != nil {
		cutoff = *since
	}
	var feedings []model.Feeding
	err := s.db.WithContext(ctx).
		Where("time_requested > ?", cutoff).
		Order("time_requested DESC").
		Limit(limit).
		Find(&feedings).Error
	if err != nil {
		return nil, fmt.Errorf("list feedings: %w", err)
	}
	return feedings, nil
}

// settings returns the one settings row, creating it with defaults if the
// table is empty.
func (s *gormStore) settings(ctx context.Context) (model.DeviceSettings, error) {
	var settings model.DeviceSettings
	err := s.db.WithContext(ctx).
		Where(model.DeviceSettings{ID: 1}).
		Attrs(model.DeviceSettings{FeedAngle: model.DefaultFeedAngle}).
		FirstOrCreate(&settings).Error
	if err != nil {
		return model.DeviceSettings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

func (s *gormStore) FeedAngle(ctx context.Context) (float64, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.FeedAngle, nil
}

func (s *gormStore) SetFeedAngle(ctx context.Context, angle float64) error {
	settings, err := s.settings(ctx)
	if err != nil {
		return err
	}
	if settings.FeedAngle == angle {
		return nil
	}
	settings.FeedAngle = angle
	if err := s.db.WithContext(ctx).Save(&settings).Error; err != nil {
		return fmt.Errorf("set feed angle: %w", err)
	}
	return nil
}

// AddSchedule validates and persists a new schedule.
func (s *gormStore) AddSchedule(ctx context.Context, mode model.ScheduleMode, timeOfDay *model.TimeOfDay) (model.Schedule, error) {
	schedule, err := model.NewSchedule(mode, timeOfDay)
	if err != nil {
		return model.Schedule{}, err
	}
	if err := s.db.WithContext(ctx).Create(&schedule).Error; err != nil {
		return model.Schedule{}, fmt.Errorf("add schedule: %w", err)
	}
	return schedule, nil
}

// UpdateSchedule changes the time of day of an existing schedule in place.
func (s *gormStore) UpdateSchedule(ctx context.Context, scheduleID int64, timeOfDay model.TimeOfDay) (model.Schedule, error) {
	var schedule model.Schedule
	err := s.db.WithContext(ctx).First(&schedule, scheduleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Schedule{}, ErrScheduleNotFound
	}
	if err != nil {
		return model.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	schedule.TimeOfDay = &timeOfDay
	if err := s.db.WithContext(ctx).Save(&schedule).Error; err != nil {
		return model.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	return schedule, nil
}

func (s *gormStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := s.db.WithContext(ctx).Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (s *gormStore) RemoveSchedule(ctx context.Context, scheduleID int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Schedule{}, scheduleID)
	if res.Error != nil {
		return fmt.Errorf("remove schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// SaveSubscription upserts a subscription by endpoint.
func (s *gormStore) SaveSubscription(ctx context.Context, sub model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Delete(&model.PushSubscription{}, "endpoint = ?", endpoint).Error
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
