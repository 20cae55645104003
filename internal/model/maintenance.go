package model

import "time"

type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

func (s MaintenanceStatus) Valid() bool {
	switch s {
	case MaintenancePending, MaintenanceInProgress, MaintenanceCompleted, MaintenanceCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityEmergency, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// MaintenanceRequest is a ticket raised by a tenant against a property
type MaintenanceRequest struct {
	Base
	TenantID    string            `gorm:"size:36;index;not null" json:"tenant_id"`
	PropertyID  string            `gorm:"size:36;index;not null" json:"property_id"`
	Title       string            `gorm:"not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Status      MaintenanceStatus `gorm:"size:16;index;not null" json:"status"`
	PhotoURL    *string           `gorm:"column:photo_url" json:"photo_url"`

	AssignedWorkerName  *string    `json:"assigned_worker_name,omitempty"`
	AssignedWorkerPhone *string    `json:"assigned_worker_phone,omitempty"`
	AssignedAt          *time.Time `json:"assigned_at,omitempty"`
	ViewedAt            *time.Time `json:"viewed_at,omitempty"`
	ViewedBy            *string    `gorm:"size:36" json:"viewed_by,omitempty"`
	ScheduledDate       *time.Time `json:"scheduled_date,omitempty"`
	Priority            *Priority  `gorm:"size:16" json:"priority,omitempty"`
	Category            *string    `json:"category,omitempty"`
	Notes               *string    `gorm:"type:text" json:"notes,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	AIClassification    string `gorm:"column:ai_classification" json:"ai_classification,omitempty"`
	AIPriority          string `gorm:"column:ai_priority" json:"ai_priority,omitempty"`
	AISummary           string `gorm:"column:ai_summary;type:text" json:"ai_summary,omitempty"`
	AISuggestedAction   string `gorm:"column:ai_suggested_action;type:text" json:"ai_suggested_action,omitempty"`
	AISuggestedCategory string `gorm:"column:ai_suggested_category" json:"ai_suggested_category,omitempty"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"properties,omitempty"`
	Tenant   *Profile  `gorm:"foreignKey:TenantID" json:"profiles,omitempty"`
}

// TriageAnnotation is the AI assessment attached to a maintenance request.
type TriageAnnotation struct {
	Classification    string `json:"classification"`
	Priority          string `json:"priority"`
	Summary           string `json:"summary"`
	SuggestedAction   string `json:"suggested_action"`
	SuggestedCategory string `json:"suggested_category"`
}
