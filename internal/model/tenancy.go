package model

import "gorm.io/datatypes"

type TenancyStatus string

const (
	TenancyActive  TenancyStatus = "active"
	TenancyEnded   TenancyStatus = "ended"
	TenancyPending TenancyStatus = "pending"
)

func (s TenancyStatus) Valid() bool {
	return s == TenancyActive || s == TenancyEnded || s == TenancyPending
}

// Tenancy links a property to a tenant for a lease period. At most one active
// tenancy per property is assumed by the queries but not enforced.
type Tenancy struct {
	Base
	PropertyID    string          `gorm:"size:36;index;not null" json:"property_id"`
	Property      *Property       `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	TenantID      string          `gorm:"size:36;index;not null" json:"tenant_id"`
	Tenant        *Profile        `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	StartDate     datatypes.Date  `json:"start_date"`
	EndDate       *datatypes.Date `gorm:"index" json:"end_date,omitempty"`
	MonthlyRent   *float64        `gorm:"type:decimal(10,2)" json:"monthly_rent,omitempty"`
	DepositAmount *float64        `gorm:"type:decimal(10,2)" json:"deposit_amount,omitempty"`
	PaymentDueDay *int            `json:"payment_due_day,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	Status        TenancyStatus   `gorm:"size:16;index;not null" json:"status"`
}
