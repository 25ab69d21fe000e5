package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetSiteRepository returns the site repository instance
func (f *Factory) GetSiteRepository() SiteRepository {
	return f.GetRepositories().Site
}

// GetEventRepository returns the payment event repository instance
func (f *Factory) GetEventRepository() EventRepository {
	return f.GetRepositories().Event
}

// GetHookRepository returns the hook directory repository instance
func (f *Factory) GetHookRepository() HookRepository {
	return f.GetRepositories().Hook
}

// GetSnapshotRepository returns the snapshot repository instance
func (f *Factory) GetSnapshotRepository() SnapshotRepository {
	return f.GetRepositories().Snapshot
}

var (
	globalFactory *Factory
	globalMu      sync.RWMutex
)

// SetGlobalFactory installs the process-wide factory.
func SetGlobalFactory(f *Factory) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalFactory = f
}

// GetGlobalFactory returns the process-wide factory; nil before setup.
func GetGlobalFactory() *Factory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}
