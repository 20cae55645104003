package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
)

const applicationsTable = "applications"

type ApplicationRepository struct {
	base
	now func() time.Time
}

func NewApplicationRepository(gw *gateway.Client, logger *zap.Logger) *ApplicationRepository {
	return &ApplicationRepository{base: newBase(gw, logger), now: time.Now}
}

// Submit files an application from tenantID for a property. A tenant may hold
// one open application per property.
func (r *ApplicationRepository) Submit(ctx context.Context, tenantID, propertyID, message string) (app *model.Application, err error) {
	done := r.track("applications.insert")
	defer func() { done(err) }()

	if err := requireActor(tenantID); err != nil {
		return nil, err
	}
	if propertyID == "" {
		return nil, apperr.Invalid("property_id", "is required")
	}

	err = r.db(ctx).Transaction(func(tx *gorm.DB) error {
		var prop model.Property
		if err := tx.Select("id", "landlord_id").Where("id = ?", propertyID).First(&prop).Error; err != nil {
			return apperr.Remote("applications.insert", err)
		}
		if prop.LandlordID == tenantID {
			return apperr.Invalid("property_id", "cannot apply to your own property")
		}

		var open int64
		if err := tx.Model(&model.Application{}).
			Where("property_id = ? AND tenant_id = ? AND status = ?", propertyID, tenantID, model.ApplicationSubmitted).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperr.ErrConflict
		}

		app = &model.Application{
			PropertyID: propertyID,
			TenantID:   tenantID,
			Message:    message,
			Status:     model.ApplicationSubmitted,
		}
		return tx.Create(app).Error
	})
	if err != nil {
		return nil, r.writeFailed("applications.insert", err, zap.String("property_id", propertyID))
	}
	r.gw.Notify(ctx, applicationsTable, gateway.EventInsert, app)
	return app, nil
}

// ListForLandlord returns applications on the landlord's properties, newest
// first, with the property and applicant joined.
func (r *ApplicationRepository) ListForLandlord(ctx context.Context, landlordID string) []model.Application {
	done := r.track("applications.list")

	owned := r.db(ctx).Model(&model.Property{}).Select("id").Where("landlord_id = ?", landlordID)
	var apps []model.Application
	err := r.db(ctx).
		Preload("Property").
		Preload("Tenant").
		Where("property_id IN (?)", owned).
		Order("created_at DESC").
		Find(&apps).Error
	done(err)
	if err != nil {
		r.readFailed("applications.list", err, zap.String("landlord_id", landlordID))
		return []model.Application{}
	}
	return apps
}

// Get returns an application visible to userID: the applicant or the owner of
// the property.
func (r *ApplicationRepository) Get(ctx context.Context, userID, id string) *model.Application {
	done := r.track("applications.get")

	owned := r.db(ctx).Model(&model.Property{}).Select("id").Where("landlord_id = ?", userID)
	var app model.Application
	err := r.db(ctx).
		Preload("Property").
		Preload("Tenant").
		Where("id = ?", id).
		Where("tenant_id = ? OR property_id IN (?)", userID, owned).
		First(&app).Error
	done(err)
	if err != nil {
		r.readFailed("applications.get", err, zap.String("application_id", id))
		return nil
	}
	return &app
}

// Review accepts or rejects a submitted application on one of the landlord's
// properties.
func (r *ApplicationRepository) Review(ctx context.Context, landlordID, id string, status model.ApplicationStatus) (app *model.Application, err error) {
	done := r.track("applications.review")
	defer func() { done(err) }()

	if err := requireActor(landlordID); err != nil {
		return nil, err
	}
	if status != model.ApplicationAccepted && status != model.ApplicationRejected {
		return nil, apperr.Invalid("status", "must be accepted or rejected")
	}

	owned := r.db(ctx).Model(&model.Property{}).Select("id").Where("landlord_id = ?", landlordID)
	reviewedAt := r.now()
	res := r.db(ctx).Model(&model.Application{}).
		Where("id = ? AND status = ?", id, model.ApplicationSubmitted).
		Where("property_id IN (?)", owned).
		Updates(map[string]interface{}{"status": status, "reviewed_at": &reviewedAt})
	if res.Error != nil {
		return nil, r.writeFailed("applications.review", res.Error, zap.String("application_id", id))
	}
	if res.RowsAffected == 0 {
		return nil, r.writeFailed("applications.review", apperr.Remote("applications.review", apperr.ErrNotFound), zap.String("application_id", id))
	}

	var updated model.Application
	if err := r.db(ctx).Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, r.writeFailed("applications.review", err, zap.String("application_id", id))
	}
	r.gw.Notify(ctx, applicationsTable, gateway.EventUpdate, &updated)
	return &updated, nil
}
