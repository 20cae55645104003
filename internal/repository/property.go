package repository

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
)

const propertiesTable = "properties"

type PropertyInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Address     string   `json:"address"`
	ImageURLs   []string `json:"image_urls"`
}

func (in PropertyInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Invalid("title", "is required")
	}
	if in.Price < 0 {
		return apperr.Invalid("price", "must not be negative")
	}
	return nil
}

type PropertyPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Address     *string   `json:"address,omitempty"`
	ImageURLs   *[]string `json:"image_urls,omitempty"`
}

func (p PropertyPatch) columns() (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, apperr.Invalid("title", "must not be empty")
		}
		cols["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Price != nil {
		if *p.Price < 0 {
			return nil, apperr.Invalid("price", "must not be negative")
		}
		cols["price"] = *p.Price
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.ImageURLs != nil {
		cols["image_urls"] = datatypes.JSONSlice[string](*p.ImageURLs)
	}
	return cols, nil
}

type PropertyRepository struct {
	base
}

func NewPropertyRepository(gw *gateway.Client, logger *zap.Logger) *PropertyRepository {
	return &PropertyRepository{base: newBase(gw, logger)}
}

// ListByLandlord returns the landlord's properties, newest first. Unlike the
// swallowing reads it returns the error so the caller can surface it.
func (r *PropertyRepository) ListByLandlord(ctx context.Context, landlordID string) (props []model.Property, err error) {
	done := r.track("properties.list_mine")
	defer func() { done(err) }()

	if err := requireActor(landlordID); err != nil {
		return nil, err
	}
	err = r.db(ctx).Where("landlord_id = ?", landlordID).Order("created_at DESC").Find(&props).Error
	if err != nil {
		return nil, r.writeFailed("properties.list_mine", err, zap.String("landlord_id", landlordID))
	}
	return props, nil
}

func (r *PropertyRepository) ListAll(ctx context.Context) (props []model.Property, err error) {
	done := r.track("properties.list")
	defer func() { done(err) }()

	err = r.db(ctx).Order("created_at DESC").Find(&props).Error
	if err != nil {
		return nil, r.writeFailed("properties.list", err)
	}
	return props, nil
}

func (r *PropertyRepository) GetProperty(ctx context.Context, id string) *model.Property {
	done := r.track("properties.get")

	var p model.Property
	err := r.db(ctx).Preload("Landlord").Where("id = ?", id).First(&p).Error
	done(err)
	if err != nil {
		r.readFailed("properties.get", err, zap.String("property_id", id))
		return nil
	}
	return &p
}

func (r *PropertyRepository) Create(ctx context.Context, landlordID string, in PropertyInput) (p *model.Property, err error) {
	done := r.track("properties.insert")
	defer func() { done(err) }()

	if err := requireActor(landlordID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	images := in.ImageURLs
	if images == nil {
		images = []string{}
	}
	p = &model.Property{
		LandlordID:  landlordID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Address:     in.Address,
		ImageURLs:   images,
	}
	if err := r.db(ctx).Create(p).Error; err != nil {
		return nil, r.writeFailed("properties.insert", err, zap.String("landlord_id", landlordID))
	}
	r.gw.Notify(ctx, propertiesTable, gateway.EventInsert, p)
	return p, nil
}

// Update patches a property owned by landlordID. Properties owned by someone
// else are reported as not found.
func (r *PropertyRepository) Update(ctx context.Context, landlordID, id string, patch PropertyPatch) (p *model.Property, err error) {
	done := r.track("properties.update")
	defer func() { done(err) }()

	if err := requireActor(landlordID); err != nil {
		return nil, err
	}
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}

	res := r.db(ctx).Model(&model.Property{}).
		Where("id = ? AND landlord_id = ?", id, landlordID).
		Updates(cols)
	if res.Error != nil {
		return nil, r.writeFailed("properties.update", res.Error, zap.String("property_id", id))
	}
	if res.RowsAffected == 0 {
		return nil, r.writeFailed("properties.update", apperr.Remote("properties.update", apperr.ErrNotFound), zap.String("property_id", id))
	}

	var updated model.Property
	if err := r.db(ctx).Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, r.writeFailed("properties.update", err, zap.String("property_id", id))
	}
	r.gw.Notify(ctx, propertiesTable, gateway.EventUpdate, &updated)
	return &updated, nil
}

func (r *PropertyRepository) Delete(ctx context.Context, landlordID, id string) (err error) {
	done := r.track("properties.delete")
	defer func() { done(err) }()

	if err := requireActor(landlordID); err != nil {
		return err
	}

	var p model.Property
	if err := r.db(ctx).Where("id = ? AND landlord_id = ?", id, landlordID).First(&p).Error; err != nil {
		return r.writeFailed("properties.delete", apperr.Remote("properties.delete", err), zap.String("property_id", id))
	}
	if err := r.db(ctx).Delete(&p).Error; err != nil {
		return r.writeFailed("properties.delete", err, zap.String("property_id", id))
	}
	r.gw.Notify(ctx, propertiesTable, gateway.EventDelete, &p)
	return nil
}
