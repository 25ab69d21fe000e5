package repository

import (
	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type hookRepository struct {
	db *gorm.DB
}

// NewHookRepository creates a hook directory repository backed by GORM.
func NewHookRepository(db *gorm.DB) HookRepository {
	return &hookRepository{db: db}
}

func (r *hookRepository) Upsert(hook *models.SiteHook) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"toggle_url", "updated_at"}),
	}).Create(hook).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("slug = ?", hook.Slug).First(hook).Error
}

func (r *hookRepository) GetBySlug(slug string) (*models.SiteHook, error) {
	var hook models.SiteHook
	if err := r.db.Where("slug = ?", slug).First(&hook).Error; err != nil {
		return nil, err
	}
	return &hook, nil
}

func (r *hookRepository) List() ([]models.SiteHook, error) {
	var hooks []models.SiteHook
	err := r.db.Order("slug ASC").Find(&hooks).Error
	return hooks, err
}

func (r *hookRepository) Delete(slug string) error {
	return r.db.Where("slug = ?", slug).Delete(&models.SiteHook{}).Error
}
