package models

import "time"

// SiteHook maps a tenant slug to the endpoint that enables or disables the
// tenant's site. Rows are maintained by admin tooling.
type SiteHook struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"type:varchar(100);uniqueIndex" json:"slug" validate:"required,min=2,max=100"`
	ToggleURL string    `gorm:"type:varchar(500);not null" json:"toggle_url" validate:"required,url,max=500"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
