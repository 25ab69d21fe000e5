package repository

import (
	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates an event log repository backed by GORM.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Append adds one event to the log. There is deliberately no update or
// delete; the log is immutable.
func (r *eventRepository) Append(event *models.PaymentEvent) error {
	return r.db.Create(event).Error
}

func (r *eventRepository) ListBySubscription(subscriptionID string) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := r.db.Where("subscription_id = ?", subscriptionID).
		Order("event_timestamp ASC, id ASC").Find(&events).Error
	return events, err
}

func (r *eventRepository) List(offset, limit int) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := r.db.Offset(offset).Limit(limit).Order("id DESC").Find(&events).Error
	return events, err
}

func (r *eventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentEvent{}).Count(&count).Error
	return count, err
}
