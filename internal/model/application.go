package model

import "time"

type ApplicationStatus string

const (
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// Application represents a tenant applying to rent a property
type Application struct {
	Base
	PropertyID string            `gorm:"size:36;index;not null" json:"property_id"`
	Property   *Property         `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	TenantID   string            `gorm:"size:36;index;not null" json:"tenant_id"`
	Tenant     *Profile          `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Message    string            `gorm:"type:text" json:"message"`
	Status     ApplicationStatus `gorm:"size:16;index;not null" json:"status"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
}
