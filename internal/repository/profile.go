package repository

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
)

const profilesTable = "profiles"

// ProfilePatch carries the profile fields a caller may change. Nil fields are
// left untouched.
type ProfilePatch struct {
	FullName            *string             `json:"full_name,omitempty"`
	Role                *model.Role         `json:"role,omitempty"`
	LandlordType        *model.LandlordType `json:"landlord_type,omitempty"`
	CompanyName         *string             `json:"company_name,omitempty"`
	Bio                 *string             `json:"bio,omitempty"`
	AvatarURL           *string             `json:"avatar_url,omitempty"`
	PhoneNumber         *string             `json:"phone_number,omitempty"`
	LinkedInURL         *string             `json:"linkedin_url,omitempty"`
	WebsiteURL          *string             `json:"website_url,omitempty"`
	YearsOfExperience   *int                `json:"years_of_experience,omitempty"`
	Occupation          *string             `json:"occupation,omitempty"`
	Employer            *string             `json:"employer,omitempty"`
	ProfileCompleted    *bool               `json:"profile_completed,omitempty"`
	OnboardingCompleted *bool               `json:"onboarding_completed,omitempty"`
}

func (p ProfilePatch) Validate() error {
	if p.Role != nil && !p.Role.Valid() {
		return apperr.Invalid("role", "must be tenant or landlord")
	}
	if p.LandlordType != nil && *p.LandlordType != "" && !p.LandlordType.Valid() {
		return apperr.Invalid("landlord_type", "must be individual, company or property_management")
	}
	if p.YearsOfExperience != nil && *p.YearsOfExperience < 0 {
		return apperr.Invalid("years_of_experience", "must not be negative")
	}
	return nil
}

// Columns maps the set fields to their column names.
func (p ProfilePatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(name string, ok bool, v interface{}) {
		if ok {
			cols[name] = v
		}
	}
	set("full_name", p.FullName != nil, deref(p.FullName))
	set("role", p.Role != nil, derefRole(p.Role))
	set("landlord_type", p.LandlordType != nil, derefLandlordType(p.LandlordType))
	set("company_name", p.CompanyName != nil, deref(p.CompanyName))
	set("bio", p.Bio != nil, deref(p.Bio))
	set("avatar_url", p.AvatarURL != nil, deref(p.AvatarURL))
	set("phone_number", p.PhoneNumber != nil, deref(p.PhoneNumber))
	set("linkedin_url", p.LinkedInURL != nil, deref(p.LinkedInURL))
	set("website_url", p.WebsiteURL != nil, deref(p.WebsiteURL))
	set("years_of_experience", p.YearsOfExperience != nil, p.YearsOfExperience)
	set("occupation", p.Occupation != nil, deref(p.Occupation))
	set("employer", p.Employer != nil, deref(p.Employer))
	set("profile_completed", p.ProfileCompleted != nil, p.ProfileCompleted != nil && *p.ProfileCompleted)
	set("onboarding_completed", p.OnboardingCompleted != nil, p.OnboardingCompleted != nil && *p.OnboardingCompleted)
	return cols
}

// Apply copies the set fields onto profile.
func (p ProfilePatch) Apply(profile *model.Profile) {
	if p.FullName != nil {
		profile.FullName = *p.FullName
	}
	if p.Role != nil {
		profile.Role = *p.Role
	}
	if p.LandlordType != nil {
		profile.LandlordType = *p.LandlordType
	}
	if p.CompanyName != nil {
		profile.CompanyName = *p.CompanyName
	}
	if p.Bio != nil {
		profile.Bio = *p.Bio
	}
	if p.AvatarURL != nil {
		profile.AvatarURL = *p.AvatarURL
	}
	if p.PhoneNumber != nil {
		profile.PhoneNumber = *p.PhoneNumber
	}
	if p.LinkedInURL != nil {
		profile.LinkedInURL = *p.LinkedInURL
	}
	if p.WebsiteURL != nil {
		profile.WebsiteURL = *p.WebsiteURL
	}
	if p.YearsOfExperience != nil {
		years := *p.YearsOfExperience
		profile.YearsOfExperience = &years
	}
	if p.Occupation != nil {
		profile.Occupation = *p.Occupation
	}
	if p.Employer != nil {
		profile.Employer = *p.Employer
	}
	if p.ProfileCompleted != nil {
		profile.ProfileCompleted = *p.ProfileCompleted
	}
	if p.OnboardingCompleted != nil {
		profile.OnboardingCompleted = *p.OnboardingCompleted
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefRole(r *model.Role) model.Role {
	if r == nil {
		return ""
	}
	return *r
}

func derefLandlordType(t *model.LandlordType) model.LandlordType {
	if t == nil {
		return ""
	}
	return *t
}

// LandlordFilter narrows GetLandlords. Zero values match everything.
type LandlordFilter struct {
	LandlordType model.LandlordType
	Verified     *bool
	MinRating    float64
}

type ProfileRepository struct {
	base
}

func NewProfileRepository(gw *gateway.Client, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{base: newBase(gw, logger)}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id string) *model.Profile {
	done := r.track("profiles.get")

	var p model.Profile
	err := r.db(ctx).Where("id = ?", id).First(&p).Error
	done(err)
	if err != nil {
		r.readFailed("profiles.get", err, zap.String("profile_id", id))
		return nil
	}
	return &p
}

// SearchProfiles matches query against full name and company name, case
// insensitively. An empty role matches both roles.
func (r *ProfileRepository) SearchProfiles(ctx context.Context, query string, role model.Role) []model.Profile {
	done := r.track("profiles.search")

	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	q := r.db(ctx).Where("LOWER(full_name) LIKE ? OR LOWER(company_name) LIKE ?", pattern, pattern)
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var profiles []model.Profile
	err := q.Order("full_name ASC").Find(&profiles).Error
	done(err)
	if err != nil {
		r.readFailed("profiles.search", err, zap.String("query", query))
		return []model.Profile{}
	}
	return profiles
}

// GetLandlords lists landlord profiles, best rated first.
func (r *ProfileRepository) GetLandlords(ctx context.Context, f LandlordFilter) []model.Profile {
	done := r.track("profiles.landlords")

	q := r.db(ctx).Where("role = ?", model.RoleLandlord)
	if f.LandlordType != "" {
		q = q.Where("landlord_type = ?", f.LandlordType)
	}
	if f.Verified != nil {
		q = q.Where("verified = ?", *f.Verified)
	}
	if f.MinRating > 0 {
		q = q.Where("rating >= ?", f.MinRating)
	}

	var profiles []model.Profile
	err := q.Order("rating DESC").Find(&profiles).Error
	done(err)
	if err != nil {
		r.readFailed("profiles.landlords", err)
		return []model.Profile{}
	}
	return profiles
}

// GetLandlordStats aggregates a landlord's listings and applications.
// Average response time covers reviewed applications only.
func (r *ProfileRepository) GetLandlordStats(ctx context.Context, landlordID string) *model.LandlordStats {
	done := r.track("profiles.landlord_stats")

	stats, err := r.landlordStats(ctx, landlordID)
	done(err)
	if err != nil {
		r.readFailed("profiles.landlord_stats", err, zap.String("landlord_id", landlordID))
		return nil
	}
	return stats
}

func (r *ProfileRepository) landlordStats(ctx context.Context, landlordID string) (*model.LandlordStats, error) {
	var p model.Profile
	if err := r.db(ctx).Where("id = ? AND role = ?", landlordID, model.RoleLandlord).First(&p).Error; err != nil {
		return nil, err
	}

	stats := &model.LandlordStats{
		ID:           p.ID,
		FullName:     p.FullName,
		CompanyName:  p.CompanyName,
		LandlordType: p.LandlordType,
		Rating:       p.Rating,
		Verified:     p.Verified,
	}

	owned := r.db(ctx).Model(&model.Property{}).Select("id").Where("landlord_id = ?", landlordID)

	if err := r.db(ctx).Model(&model.Property{}).Where("landlord_id = ?", landlordID).Count(&stats.TotalProperties).Error; err != nil {
		return nil, err
	}

	var apps []model.Application
	if err := r.db(ctx).Where("property_id IN (?)", owned).Find(&apps).Error; err != nil {
		return nil, err
	}
	stats.TotalApplications = int64(len(apps))

	var total float64
	var reviewed int
	for _, a := range apps {
		if a.ReviewedAt == nil {
			continue
		}
		total += a.ReviewedAt.Sub(a.CreatedAt).Hours()
		reviewed++
	}
	if reviewed > 0 {
		stats.AvgResponseTimeHours = total / float64(reviewed)
	}
	return stats, nil
}

func (r *ProfileRepository) GetPropertiesByLandlord(ctx context.Context, landlordID string) []model.Property {
	done := r.track("properties.by_landlord")

	var props []model.Property
	err := r.db(ctx).Where("landlord_id = ?", landlordID).Order("created_at DESC").Find(&props).Error
	done(err)
	if err != nil {
		r.readFailed("properties.by_landlord", err, zap.String("landlord_id", landlordID))
		return []model.Property{}
	}
	return props
}

// GetProfileCompleteness returns the completeness percentage, or 0 when it
// cannot be computed.
func (r *ProfileRepository) GetProfileCompleteness(ctx context.Context, id string) int {
	res, err := r.gw.Call(ctx, gateway.ProcProfileCompleteness, map[string]interface{}{"profile_id": id})
	if err == nil {
		var n int
		if n, err = gateway.Int(res); err == nil {
			return n
		}
	}
	r.readFailed("profiles.completeness", err, zap.String("profile_id", id))
	return 0
}

// UpdateRating sets a profile's rating after a review.
func (r *ProfileRepository) UpdateRating(ctx context.Context, id string, rating float64) (*model.Profile, error) {
	if rating < 0 || rating > 5 {
		return nil, apperr.Invalid("rating", "must be between 0 and 5")
	}
	return r.update(ctx, "profiles.update_rating", id, map[string]interface{}{"rating": rating})
}

// UpdateProfile applies patch to an existing profile.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*model.Profile, error) {
	if err := requireActor(id); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	cols := patch.Columns()
	if len(cols) == 0 {
		p := r.GetProfile(ctx, id)
		if p == nil {
			return nil, apperr.Remote("profiles.update", apperr.ErrNotFound)
		}
		return p, nil
	}
	return r.update(ctx, "profiles.update", id, cols)
}

func (r *ProfileRepository) update(ctx context.Context, op, id string, cols map[string]interface{}) (p *model.Profile, err error) {
	done := r.track(op)
	defer func() { done(err) }()

	res := r.db(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, r.writeFailed(op, res.Error, zap.String("profile_id", id))
	}
	if res.RowsAffected == 0 {
		return nil, r.writeFailed(op, apperr.Remote(op, apperr.ErrNotFound), zap.String("profile_id", id))
	}

	var updated model.Profile
	if err := r.db(ctx).Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, r.writeFailed(op, err, zap.String("profile_id", id))
	}
	r.gw.Notify(ctx, profilesTable, gateway.EventUpdate, &updated)
	return &updated, nil
}

// UpsertProfile inserts the profile with id or updates the patched columns
// when it already exists.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, id string, patch ProfilePatch) (p *model.Profile, err error) {
	done := r.track("profiles.upsert")
	defer func() { done(err) }()

	if err := requireActor(id); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	row := &model.Profile{Base: model.Base{ID: id}, Role: model.RoleTenant}
	patch.Apply(row)

	cols := patch.Columns()
	names := make([]string, 0, len(cols)+1)
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	names = append(names, "updated_at")

	err = r.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(names),
	}).Create(row).Error
	if err != nil {
		return nil, r.writeFailed("profiles.upsert", err, zap.String("profile_id", id))
	}

	var saved model.Profile
	if err := r.db(ctx).Where("id = ?", id).First(&saved).Error; err != nil {
		return nil, r.writeFailed("profiles.upsert", err, zap.String("profile_id", id))
	}
	r.gw.Notify(ctx, profilesTable, gateway.EventUpdate, &saved)
	return &saved, nil
}
