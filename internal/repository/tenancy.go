package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
)

const (
	tenanciesTable = "tenancies"

	DefaultLeaseWindowDays = 30
)

// TenancyPatch carries the tenancy fields a landlord may change.
type TenancyPatch struct {
	StartDate     *datatypes.Date      `json:"start_date,omitempty"`
	EndDate       *datatypes.Date      `json:"end_date,omitempty"`
	MonthlyRent   *float64             `json:"monthly_rent,omitempty"`
	DepositAmount *float64             `json:"deposit_amount,omitempty"`
	PaymentDueDay *int                 `json:"payment_due_day,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
	Status        *model.TenancyStatus `json:"status,omitempty"`
}

func (p TenancyPatch) columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if p.StartDate != nil {
		cols["start_date"] = utcDate(*p.StartDate)
	}
	if p.EndDate != nil {
		end := utcDate(*p.EndDate)
		cols["end_date"] = &end
	}
	if p.MonthlyRent != nil {
		cols["monthly_rent"] = *p.MonthlyRent
	}
	if p.DepositAmount != nil {
		cols["deposit_amount"] = *p.DepositAmount
	}
	if p.PaymentDueDay != nil {
		if err := validateDueDay(*p.PaymentDueDay); err != nil {
			return nil, err
		}
		cols["payment_due_day"] = *p.PaymentDueDay
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, apperr.Invalid("status", "must be active, ended or pending")
		}
		cols["status"] = *p.Status
	}
	return cols, nil
}

func validateDueDay(day int) error {
	if day < 1 || day > 31 {
		return apperr.Invalid("payment_due_day", "must be between 1 and 31")
	}
	return nil
}

// utcDate drops the time of day and pins the date to UTC so that stored dates
// compare correctly as text and as timestamps.
func utcDate(d datatypes.Date) datatypes.Date {
	y, m, day := time.Time(d).Date()
	return datatypes.Date(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
}

type TenancyRepository struct {
	base
	now func() time.Time
}

func NewTenancyRepository(gw *gateway.Client, logger *zap.Logger) *TenancyRepository {
	return &TenancyRepository{base: newBase(gw, logger), now: time.Now}
}

// withJoins loads the tenant and, when property is set, the property summary.
func withJoins(q *gorm.DB, property bool) *gorm.DB {
	q = q.Preload("Tenant", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "full_name", "email", "phone_number", "avatar_url")
	})
	if property {
		q = q.Preload("Property", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "address", "landlord_id")
		})
	}
	return q
}

func (r *TenancyRepository) ownedBy(ctx context.Context, landlordID string) *gorm.DB {
	return r.db(ctx).Model(&model.Property{}).Select("id").Where("landlord_id = ?", landlordID)
}

// GetActiveTenancies lists active tenancies on the landlord's properties.
func (r *TenancyRepository) GetActiveTenancies(ctx context.Context, landlordID string) []model.Tenancy {
	done := r.track("tenancies.active")

	var out []model.Tenancy
	err := withJoins(r.db(ctx), true).
		Where("status = ? AND property_id IN (?)", model.TenancyActive, r.ownedBy(ctx, landlordID)).
		Order("created_at DESC").
		Find(&out).Error
	done(err)
	if err != nil {
		r.readFailed("tenancies.active", err, zap.String("landlord_id", landlordID))
		return []model.Tenancy{}
	}
	return out
}

// GetAllTenancies lists every tenancy on the landlord's properties, newest
// first.
func (r *TenancyRepository) GetAllTenancies(ctx context.Context, landlordID string) []model.Tenancy {
	done := r.track("tenancies.all")

	var out []model.Tenancy
	err := withJoins(r.db(ctx), true).
		Where("property_id IN (?)", r.ownedBy(ctx, landlordID)).
		Order("created_at DESC").
		Find(&out).Error
	done(err)
	if err != nil {
		r.readFailed("tenancies.all", err, zap.String("landlord_id", landlordID))
		return []model.Tenancy{}
	}
	return out
}

func (r *TenancyRepository) HasActiveTenancy(ctx context.Context, propertyID string) bool {
	done := r.track("tenancies.has_active")

	var n int64
	err := r.db(ctx).Model(&model.Tenancy{}).
		Where("property_id = ? AND status = ?", propertyID, model.TenancyActive).
		Count(&n).Error
	done(err)
	if err != nil {
		r.readFailed("tenancies.has_active", err, zap.String("property_id", propertyID))
		return false
	}
	return n > 0
}

// GetActiveTenancy returns the property's active tenancy. If more than one is
// active the most recent wins.
func (r *TenancyRepository) GetActiveTenancy(ctx context.Context, propertyID string) *model.Tenancy {
	done := r.track("tenancies.get_active")

	var t model.Tenancy
	err := withJoins(r.db(ctx), false).
		Where("property_id = ? AND status = ?", propertyID, model.TenancyActive).
		Order("created_at DESC").
		First(&t).Error
	done(err)
	if err != nil {
		r.readFailed("tenancies.get_active", err, zap.String("property_id", propertyID))
		return nil
	}
	return &t
}

// GetLeaseEndingSoon lists active tenancies whose end date falls between today
// and today+days inclusive, soonest first.
func (r *TenancyRepository) GetLeaseEndingSoon(ctx context.Context, landlordID string, days int) []model.Tenancy {
	if days <= 0 {
		days = DefaultLeaseWindowDays
	}
	done := r.track("tenancies.ending_soon")

	today := utcDate(datatypes.Date(r.now()))
	until := datatypes.Date(time.Time(today).AddDate(0, 0, days))

	var out []model.Tenancy
	err := withJoins(r.db(ctx), true).
		Where("status = ? AND property_id IN (?)", model.TenancyActive, r.ownedBy(ctx, landlordID)).
		Where("end_date IS NOT NULL AND end_date >= ? AND end_date <= ?", today, until).
		Order("end_date ASC").
		Find(&out).Error
	done(err)
	if err != nil {
		r.readFailed("tenancies.ending_soon", err, zap.String("landlord_id", landlordID))
		return []model.Tenancy{}
	}
	return out
}

func (r *TenancyRepository) CreateTenancy(ctx context.Context, t *model.Tenancy) (_ *model.Tenancy, err error) {
	done := r.track("tenancies.insert")
	defer func() { done(err) }()

	if t.PropertyID == "" {
		return nil, apperr.Invalid("property_id", "is required")
	}
	if t.TenantID == "" {
		return nil, apperr.Invalid("tenant_id", "is required")
	}
	if t.Status == "" {
		t.Status = model.TenancyPending
	}
	if !t.Status.Valid() {
		return nil, apperr.Invalid("status", "must be active, ended or pending")
	}
	if t.PaymentDueDay != nil {
		if err := validateDueDay(*t.PaymentDueDay); err != nil {
			return nil, err
		}
	}
	t.StartDate = utcDate(t.StartDate)
	if t.EndDate != nil {
		end := utcDate(*t.EndDate)
		t.EndDate = &end
	}
	if t.EndDate != nil && time.Time(*t.EndDate).Before(time.Time(t.StartDate)) {
		return nil, apperr.Invalid("end_date", "must not be before start_date")
	}

	if err := r.db(ctx).Create(t).Error; err != nil {
		return nil, r.writeFailed("tenancies.insert", err, zap.String("property_id", t.PropertyID))
	}
	r.gw.Notify(ctx, tenanciesTable, gateway.EventInsert, t)
	return t, nil
}

func (r *TenancyRepository) UpdateTenancy(ctx context.Context, id string, patch TenancyPatch) (_ *model.Tenancy, err error) {
	done := r.track("tenancies.update")
	defer func() { done(err) }()

	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	return r.update(ctx, "tenancies.update", id, cols)
}

// EndTenancy sets the tenancy status to ended.
func (r *TenancyRepository) EndTenancy(ctx context.Context, id string) (err error) {
	done := r.track("tenancies.end")
	defer func() { done(err) }()

	_, err = r.update(ctx, "tenancies.end", id, map[string]interface{}{"status": model.TenancyEnded})
	return err
}

func (r *TenancyRepository) update(ctx context.Context, op, id string, cols map[string]interface{}) (*model.Tenancy, error) {
	if len(cols) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}

	res := r.db(ctx).Model(&model.Tenancy{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, r.writeFailed(op, res.Error, zap.String("tenancy_id", id))
	}
	if res.RowsAffected == 0 {
		return nil, r.writeFailed(op, apperr.Remote(op, apperr.ErrNotFound), zap.String("tenancy_id", id))
	}

	var t model.Tenancy
	if err := r.db(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, r.writeFailed(op, err, zap.String("tenancy_id", id))
	}
	r.gw.Notify(ctx, tenanciesTable, gateway.EventUpdate, &t)
	return &t, nil
}

// GetTenancyMap maps each property id to its active tenancy.
func (r *TenancyRepository) GetTenancyMap(ctx context.Context, propertyIDs []string) map[string]model.Tenancy {
	out := make(map[string]model.Tenancy)
	if len(propertyIDs) == 0 {
		return out
	}
	done := r.track("tenancies.map")

	var rows []model.Tenancy
	err := withJoins(r.db(ctx), false).
		Where("property_id IN ? AND status = ?", propertyIDs, model.TenancyActive).
		Order("created_at ASC").
		Find(&rows).Error
	done(err)
	if err != nil {
		r.readFailed("tenancies.map", err, zap.Int("properties", len(propertyIDs)))
		return out
	}
	for _, t := range rows {
		out[t.PropertyID] = t
	}
	return out
}
