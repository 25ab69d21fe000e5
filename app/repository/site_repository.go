package repository

import (
	"strings"

	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
)

type siteRepository struct {
	db *gorm.DB
}

// NewSiteRepository creates a site registry repository backed by GORM.
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) Create(site *models.Site) error {
	return r.db.Create(site).Error
}

func (r *siteRepository) GetBySlug(slug string) (*models.Site, error) {
	var site models.Site
	if err := r.db.Where("slug = ?", slug).First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepository) GetByOwnerEmail(email string) (*models.Site, error) {
	var site models.Site
	err := r.db.Where("owner_email = ?", strings.ToLower(strings.TrimSpace(email))).First(&site).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepository) GetBySubscriptionID(subscriptionID string) (*models.Site, error) {
	var site models.Site
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&site).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepository) List(offset, limit int) ([]models.Site, error) {
	var sites []models.Site
	err := r.db.Offset(offset).Limit(limit).Order("slug ASC").Find(&sites).Error
	return sites, err
}

func (r *siteRepository) Update(site *models.Site) error {
	return r.db.Save(site).Error
}

// SetAdminBlocked writes only the admin intent flag; the engine-owned
// billing_blocked column is untouched.
func (r *siteRepository) SetAdminBlocked(slug string, blocked bool) error {
	return r.db.Model(&models.Site{}).Where("slug = ?", slug).
		Update("admin_blocked", blocked).Error
}

func (r *siteRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Site{}).Count(&count).Error
	return count, err
}
