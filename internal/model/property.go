package model

import "gorm.io/datatypes"

// Property represents a rentable listing owned by exactly one landlord
type Property struct {
	Base
	LandlordID  string                      `gorm:"size:36;index;not null" json:"landlord_id"`
	Landlord    *Profile                    `gorm:"foreignKey:LandlordID" json:"landlord,omitempty"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Price       float64                     `gorm:"type:decimal(10,2)" json:"price"`
	Address     string                      `json:"address"`
	ImageURLs   datatypes.JSONSlice[string] `gorm:"column:image_urls" json:"image_urls"`
}
