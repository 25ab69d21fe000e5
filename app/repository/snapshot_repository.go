package repository

import (
	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
)

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a read-only view over the reconciliation
// snapshot table. The table itself is rewritten by the engine.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) List(offset, limit int) ([]models.BillingSnapshot, error) {
	var rows []models.BillingSnapshot
	err := r.db.Offset(offset).Limit(limit).Order("email ASC, subscription_id ASC").Find(&rows).Error
	return rows, err
}

func (r *snapshotRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.BillingSnapshot{}).Count(&count).Error
	return count, err
}
