package model

// Role decides which dashboard and role-gated routes a profile may use
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleLandlord
}

type LandlordType string

const (
	LandlordIndividual         LandlordType = "individual"
	LandlordCompany            LandlordType = "company"
	LandlordPropertyManagement LandlordType = "property_management"
)

func (t LandlordType) Valid() bool {
	switch t {
	case LandlordIndividual, LandlordCompany, LandlordPropertyManagement:
		return true
	}
	return false
}

// Profile is the public identity record of a tenant or landlord. Its ID is the
// ID of the auth user that owns it.
type Profile struct {
	Base
	FullName            string       `json:"full_name"`
	Email               string       `json:"email,omitempty"`
	Role                Role         `gorm:"size:16;index;default:tenant" json:"role"`
	LandlordType        LandlordType `gorm:"size:32" json:"landlord_type,omitempty"`
	CompanyName         string       `json:"company_name,omitempty"`
	Bio                 string       `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL           string       `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	PhoneNumber         string       `json:"phone_number,omitempty"`
	LinkedInURL         string       `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	WebsiteURL          string       `gorm:"column:website_url" json:"website_url,omitempty"`
	YearsOfExperience   *int         `json:"years_of_experience,omitempty"`
	Occupation          string       `json:"occupation,omitempty"`
	Employer            string       `json:"employer,omitempty"`
	Verified            bool         `json:"verified"`
	Rating              float64      `gorm:"index" json:"rating"`
	ProfileCompleted    bool         `json:"profile_completed"`
	OnboardingCompleted bool         `json:"onboarding_completed"`
}

// LandlordStats is a read model aggregated from properties and applications
type LandlordStats struct {
	ID                   string       `json:"id"`
	FullName             string       `json:"full_name"`
	CompanyName          string       `json:"company_name,omitempty"`
	LandlordType         LandlordType `json:"landlord_type,omitempty"`
	Rating               float64      `json:"rating"`
	Verified             bool         `json:"verified"`
	TotalProperties      int64        `json:"total_properties"`
	TotalApplications    int64        `json:"total_applications"`
	AvgResponseTimeHours float64      `json:"avg_response_time_hours"`
}
