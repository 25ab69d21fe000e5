package repository

import (
	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// SiteRepository defines the interface for tenant registry operations
type SiteRepository interface {
	Create(site *models.Site) error
	GetBySlug(slug string) (*models.Site, error)
	GetByOwnerEmail(email string) (*models.Site, error)
	GetBySubscriptionID(subscriptionID string) (*models.Site, error)
	List(offset, limit int) ([]models.Site, error)
	Update(site *models.Site) error
	SetAdminBlocked(slug string, blocked bool) error
	Count() (int64, error)
}

// EventRepository defines the interface for the append-only payment event log
type EventRepository interface {
	Append(event *models.PaymentEvent) error
	ListBySubscription(subscriptionID string) ([]models.PaymentEvent, error)
	List(offset, limit int) ([]models.PaymentEvent, error)
	Count() (int64, error)
}

// HookRepository defines the interface for site toggle-endpoint mappings
type HookRepository interface {
	Upsert(hook *models.SiteHook) error
	GetBySlug(slug string) (*models.SiteHook, error)
	List() ([]models.SiteHook, error)
	Delete(slug string) error
}

// SnapshotRepository defines read access to the reconciliation snapshot table
type SnapshotRepository interface {
	List(offset, limit int) ([]models.BillingSnapshot, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	Site     SiteRepository
	Event    EventRepository
	Hook     HookRepository
	Snapshot SnapshotRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Site:     NewSiteRepository(db),
		Event:    NewEventRepository(db),
		Hook:     NewHookRepository(db),
		Snapshot: NewSnapshotRepository(db),
	}
}
