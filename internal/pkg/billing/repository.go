package billing

import (
	"time"

	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
)

// Repository provides the store access used by the engine, the query
// service and the admission gate. The engine performs a point-in-time read
// of the list methods, computes, and writes once; it never streams.
type Repository interface {
	ListSites() ([]models.Site, error)
	ListEvents() ([]models.PaymentEvent, error)
	ListUserBilling() ([]models.UserBilling, error)

	GetUserBillingByEmail(email string) (*models.UserBilling, error)
	SaveUserBilling(ub *models.UserBilling) error

	GetSiteByOwnerEmail(email string) (*models.Site, error)
	SetSiteBillingBlocked(slug string, blocked bool) error
	GetHookBySlug(slug string) (*models.SiteHook, error)

	ReplaceSnapshots(rows []models.BillingSnapshot) error

	ListEventsBySubscription(subscriptionID string) ([]models.PaymentEvent, error)
	FindLatestActiveEventByEmail(email string) (*models.PaymentEvent, error)
	FindActiveEventByIDs(paymentID, subscriptionID string) (*models.PaymentEvent, error)
	FindRecentActiveEventByEmail(email string, since time.Time) (*models.PaymentEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListSites() ([]models.Site, error) {
	var sites []models.Site
	err := r.db.Find(&sites).Error
	return sites, err
}

func (r *gormRepository) ListEvents() ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := r.db.Order("event_timestamp ASC, id ASC").Find(&events).Error
	return events, err
}

func (r *gormRepository) ListUserBilling() ([]models.UserBilling, error) {
	var rows []models.UserBilling
	err := r.db.Find(&rows).Error
	return rows, err
}

func (r *gormRepository) GetUserBillingByEmail(email string) (*models.UserBilling, error) {
	var ub models.UserBilling
	if err := r.db.Where("email = ?", email).First(&ub).Error; err != nil {
		return nil, err
	}
	return &ub, nil
}

func (r *gormRepository) SaveUserBilling(ub *models.UserBilling) error {
	return r.db.Save(ub).Error
}

func (r *gormRepository) GetSiteByOwnerEmail(email string) (*models.Site, error) {
	var site models.Site
	if err := r.db.Where("owner_email = ?", email).First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *gormRepository) SetSiteBillingBlocked(slug string, blocked bool) error {
	return r.db.Model(&models.Site{}).Where("slug = ?", slug).
		Update("billing_blocked", blocked).Error
}

func (r *gormRepository) GetHookBySlug(slug string) (*models.SiteHook, error) {
	var hook models.SiteHook
	if err := r.db.Where("slug = ?", slug).First(&hook).Error; err != nil {
		return nil, err
	}
	return &hook, nil
}

// ReplaceSnapshots rewrites the snapshot table wholesale. Stage-then-swap
// inside one transaction so readers never observe a half-written table.
func (r *gormRepository) ReplaceSnapshots(rows []models.BillingSnapshot) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.BillingSnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

func (r *gormRepository) ListEventsBySubscription(subscriptionID string) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := r.db.Where("subscription_id = ?", subscriptionID).
		Order("event_timestamp ASC, id ASC").Find(&events).Error
	return events, err
}

func (r *gormRepository) FindLatestActiveEventByEmail(email string) (*models.PaymentEvent, error) {
	var ev models.PaymentEvent
	err := r.db.Where("payer_email = ? AND LOWER(raw_status) IN ?", email, activeStatusList()).
		Order("event_timestamp DESC, id DESC").First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) FindActiveEventByIDs(paymentID, subscriptionID string) (*models.PaymentEvent, error) {
	q := r.db.Where("LOWER(raw_status) IN ?", activeStatusList())
	switch {
	case paymentID != "" && subscriptionID != "":
		q = q.Where("payment_id = ? OR subscription_id = ?", paymentID, subscriptionID)
	case paymentID != "":
		q = q.Where("payment_id = ?", paymentID)
	default:
		q = q.Where("subscription_id = ?", subscriptionID)
	}
	var ev models.PaymentEvent
	if err := q.Order("event_timestamp DESC, id DESC").First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) FindRecentActiveEventByEmail(email string, since time.Time) (*models.PaymentEvent, error) {
	var ev models.PaymentEvent
	err := r.db.Where("payer_email = ? AND LOWER(raw_status) IN ? AND event_timestamp >= ?",
		email, activeStatusList(), since).
		Order("event_timestamp DESC, id DESC").First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
