// Package repository holds one access module per entity. Single-entity reads
// return nil on failure or not-found, list and aggregate reads return empty
// defaults, and writes return the error. Every failure is logged.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
)

type base struct {
	gw     *gateway.Client
	logger *zap.Logger
}

func newBase(gw *gateway.Client, logger *zap.Logger) base {
	if logger == nil {
		logger = gw.Logger()
	}
	return base{gw: gw, logger: logger}
}

func (b base) db(ctx context.Context) *gorm.DB {
	return b.gw.WithContext(ctx)
}

// readFailed logs a swallowed read failure. Not-found is logged at debug.
func (b base) readFailed(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b.logger.Debug("record not found", fields...)
		return
	}
	b.logger.Error("read failed", fields...)
}

// writeFailed logs a write failure and returns it wrapped for the caller.
func (b base) writeFailed(op string, err error, fields ...zap.Field) error {
	b.logger.Error("write failed", append(fields, zap.String("op", op), zap.Error(err))...)

	var validation *apperr.ValidationError
	var remote *apperr.RemoteError
	switch {
	case errors.As(err, &validation), errors.As(err, &remote),
		errors.Is(err, apperr.ErrNotAuthenticated),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrForbidden),
		errors.Is(err, apperr.ErrConflict):
		return err
	}
	return apperr.Remote(op, err)
}

// track records a gateway call for op.
func (b base) track(op string) func(error) {
	return b.gw.Track(op)
}

func requireActor(id string) error {
	if id == "" {
		return apperr.ErrNotAuthenticated
	}
	return nil
}
