package repository

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
)

const maintenanceTable = "maintenance_requests"

type MaintenanceInput struct {
	PropertyID  string  `json:"property_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

func (in MaintenanceInput) Validate() error {
	if in.PropertyID == "" {
		return apperr.Invalid("property_id", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Invalid("title", "is required")
	}
	return nil
}

type MaintenanceRepository struct {
	base
}

func NewMaintenanceRepository(gw *gateway.Client, logger *zap.Logger) *MaintenanceRepository {
	return &MaintenanceRepository{base: newBase(gw, logger)}
}

// visibleTo restricts q to rows the user may see: requests they raised and
// requests on properties they own.
func (r *MaintenanceRepository) visibleTo(ctx context.Context, q *gorm.DB, userID string) *gorm.DB {
	owned := r.db(ctx).Model(&model.Property{}).Select("id").Where("landlord_id = ?", userID)
	return q.Where("tenant_id = ? OR property_id IN (?)", userID, owned)
}

// ListVisibleTo returns the requests the user may see, newest first, with the
// property and tenant summaries joined.
func (r *MaintenanceRepository) ListVisibleTo(ctx context.Context, userID string) (out []model.MaintenanceRequest, err error) {
	done := r.track("maintenance.list")
	defer func() { done(err) }()

	if err := requireActor(userID); err != nil {
		return nil, err
	}

	q := r.db(ctx).
		Preload("Property", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "address", "landlord_id")
		}).
		Preload("Tenant", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "full_name")
		})
	err = r.visibleTo(ctx, q, userID).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, r.writeFailed("maintenance.list", err, zap.String("user_id", userID))
	}
	return out, nil
}

// Create files a pending request for tenantID.
func (r *MaintenanceRepository) Create(ctx context.Context, tenantID string, in MaintenanceInput) (req *model.MaintenanceRequest, err error) {
	done := r.track("maintenance.insert")
	defer func() { done(err) }()

	if err := requireActor(tenantID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var n int64
	if err := r.db(ctx).Model(&model.Property{}).Where("id = ?", in.PropertyID).Count(&n).Error; err != nil {
		return nil, r.writeFailed("maintenance.insert", err)
	}
	if n == 0 {
		return nil, apperr.Remote("maintenance.insert", apperr.ErrNotFound)
	}

	req = &model.MaintenanceRequest{
		TenantID:    tenantID,
		PropertyID:  in.PropertyID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		PhotoURL:    in.PhotoURL,
		Status:      model.MaintenancePending,
	}
	if err := r.db(ctx).Create(req).Error; err != nil {
		return nil, r.writeFailed("maintenance.insert", err, zap.String("property_id", in.PropertyID))
	}
	r.gw.Notify(ctx, maintenanceTable, gateway.EventInsert, req)
	return req, nil
}

// UpdateStatus changes the status of a request visible to userID and returns
// the updated row without joins. Completing a request stamps completed_at.
func (r *MaintenanceRepository) UpdateStatus(ctx context.Context, userID, id string, status model.MaintenanceStatus) (*model.MaintenanceRequest, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Invalid("status", "must be pending, in_progress, completed or cancelled")
	}

	cols := map[string]interface{}{"status": status}
	if status == model.MaintenanceCompleted {
		now := time.Now()
		cols["completed_at"] = &now
	}
	return r.update(ctx, "maintenance.update_status", userID, id, cols)
}

// AssignWorker records who will do the work.
func (r *MaintenanceRepository) AssignWorker(ctx context.Context, userID, id, name, phone string) (*model.MaintenanceRequest, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Invalid("assigned_worker_name", "is required")
	}
	now := time.Now()
	return r.update(ctx, "maintenance.assign_worker", userID, id, map[string]interface{}{
		"assigned_worker_name":  strings.TrimSpace(name),
		"assigned_worker_phone": strings.TrimSpace(phone),
		"assigned_at":           &now,
	})
}

// MarkViewed stamps the first time someone other than the author opened the
// request. Later views, and views by users who cannot see the request, leave
// the stamp alone.
func (r *MaintenanceRepository) MarkViewed(ctx context.Context, viewerID, id string) (err error) {
	done := r.track("maintenance.mark_viewed")
	defer func() { done(err) }()

	if err := requireActor(viewerID); err != nil {
		return err
	}
	now := time.Now()
	q := r.db(ctx).Model(&model.MaintenanceRequest{}).
		Where("id = ? AND viewed_at IS NULL AND tenant_id <> ?", id, viewerID)
	err = r.visibleTo(ctx, q, viewerID).
		Updates(map[string]interface{}{"viewed_at": &now, "viewed_by": viewerID}).Error
	if err != nil {
		return r.writeFailed("maintenance.mark_viewed", err, zap.String("request_id", id))
	}
	return nil
}

// ApplyTriage stores an AI assessment on the request.
func (r *MaintenanceRepository) ApplyTriage(ctx context.Context, id string, a model.TriageAnnotation) (req *model.MaintenanceRequest, err error) {
	done := r.track("maintenance.apply_triage")
	defer func() { done(err) }()

	cols := map[string]interface{}{
		"ai_classification":     a.Classification,
		"ai_priority":           a.Priority,
		"ai_summary":            a.Summary,
		"ai_suggested_action":   a.SuggestedAction,
		"ai_suggested_category": a.SuggestedCategory,
	}
	if p := model.Priority(a.Priority); p.Valid() {
		cols["priority"] = p
	}

	res := r.db(ctx).Model(&model.MaintenanceRequest{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, r.writeFailed("maintenance.apply_triage", res.Error, zap.String("request_id", id))
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Remote("maintenance.apply_triage", apperr.ErrNotFound)
	}
	return r.reload(ctx, "maintenance.apply_triage", id)
}

func (r *MaintenanceRepository) update(ctx context.Context, op, userID, id string, cols map[string]interface{}) (req *model.MaintenanceRequest, err error) {
	done := r.track(op)
	defer func() { done(err) }()

	q := r.db(ctx).Model(&model.MaintenanceRequest{}).Where("id = ?", id)
	res := r.visibleTo(ctx, q, userID).Updates(cols)
	if res.Error != nil {
		return nil, r.writeFailed(op, res.Error, zap.String("request_id", id))
	}
	if res.RowsAffected == 0 {
		return nil, r.writeFailed(op, apperr.Remote(op, apperr.ErrNotFound), zap.String("request_id", id))
	}
	return r.reload(ctx, op, id)
}

func (r *MaintenanceRepository) reload(ctx context.Context, op, id string) (*model.MaintenanceRequest, error) {
	var req model.MaintenanceRequest
	if err := r.db(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, r.writeFailed(op, err, zap.String("request_id", id))
	}
	r.gw.Notify(ctx, maintenanceTable, gateway.EventUpdate, &req)
	return &req, nil
}
