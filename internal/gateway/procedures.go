package gateway

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
)

const ProcProfileCompleteness = "calculate_profile_completeness"

// profileCompleteness returns the percentage (0-100, rounded down) of filled
// profile fields. Landlords and tenants are scored on different fields.
func profileCompleteness(ctx context.Context, db *gorm.DB, args map[string]interface{}) (interface{}, error) {
	id, _ := args["profile_id"].(string)
	if id == "" {
		return nil, apperr.Invalid("profile_id", "is required")
	}

	var p model.Profile
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, apperr.Remote("rpc."+ProcProfileCompleteness, err)
	}
	return Completeness(&p), nil
}

// Completeness scores p without touching the store.
func Completeness(p *model.Profile) int {
	fields := []bool{
		p.FullName != "",
		p.Email != "",
		p.PhoneNumber != "",
		p.Bio != "",
		p.AvatarURL != "",
	}

	switch p.Role {
	case model.RoleLandlord:
		fields = append(fields,
			p.LandlordType != "",
			p.LandlordType == model.LandlordIndividual || p.CompanyName != "",
			p.YearsOfExperience != nil,
			p.WebsiteURL != "" || p.LinkedInURL != "",
		)
	default:
		fields = append(fields,
			p.Occupation != "",
			p.Employer != "",
		)
	}

	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	return filled * 100 / len(fields)
}

// Int converts a procedure result to an int.
func Int(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected procedure result %T", v)
	}
}
