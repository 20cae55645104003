// Package gateway is the remote data gateway behind tenantly: relational rows
// through gorm, token sessions, object storage, a realtime change feed and a
// registry of server-side procedures.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/metrics"
)

// Procedure is a named server-side call.
type Procedure func(ctx context.Context, db *gorm.DB, args map[string]interface{}) (interface{}, error)

type Options struct {
	Auth     AuthOptions
	Storage  ObjectStore
	Realtime Broker
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Client struct {
	DB       *gorm.DB
	Auth     *Auth
	Storage  ObjectStore
	Realtime Broker
	Metrics  *metrics.Metrics

	logger     *zap.Logger
	mu         sync.RWMutex
	procedures map[string]Procedure
	now        func() time.Time
}

// New wires a Client. Storage and Realtime default to their in-memory
// implementations.
func New(db *gorm.DB, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	storage := opts.Storage
	if storage == nil {
		storage = NewMemoryStore("/storage")
	}
	broker := opts.Realtime
	if broker == nil {
		broker = NewMemoryBroker(logger)
	}

	c := &Client{
		DB:         db,
		Auth:       NewAuth(db, opts.Auth, logger),
		Storage:    storage,
		Realtime:   broker,
		Metrics:    opts.Metrics,
		logger:     logger,
		procedures: make(map[string]Procedure),
		now:        time.Now,
	}
	c.RegisterProcedure(ProcProfileCompleteness, profileCompleteness)
	return c
}

func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// WithContext returns a gorm session bound to ctx.
func (c *Client) WithContext(ctx context.Context) *gorm.DB {
	return c.DB.WithContext(ctx)
}

// Track starts timing op and returns a func that records the outcome.
func (c *Client) Track(op string) func(error) {
	start := time.Now()
	return func(err error) {
		c.Metrics.RecordGatewayCall(op, err, time.Since(start))
	}
}

func (c *Client) RegisterProcedure(name string, p Procedure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.procedures[name] = p
}

// Call runs the named procedure.
func (c *Client) Call(ctx context.Context, name string, args map[string]interface{}) (result interface{}, err error) {
	done := c.Track("rpc." + name)
	defer func() { done(err) }()

	c.mu.RLock()
	p, ok := c.procedures[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown procedure %q", name)
	}
	return p(ctx, c.DB.WithContext(ctx), args)
}

// Notify publishes one change event per row. Publish failures are logged
// and do not fail the write that produced them.
func (c *Client) Notify(ctx context.Context, table string, typ EventType, rows ...interface{}) {
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			c.logger.Error("failed to encode change event", zap.String("table", table), zap.Error(err))
			continue
		}
		ev := ChangeEvent{
			Table:           table,
			Type:            typ,
			New:             data,
			CommitTimestamp: c.now(),
		}
		if err := c.Realtime.Publish(ctx, ev); err != nil {
			c.logger.Error("failed to publish change event",
				zap.String("table", table),
				zap.String("type", string(typ)),
				zap.Error(err),
			)
			continue
		}
		c.Metrics.RecordRealtimeEvent(table, string(typ))
	}
}

// Ping checks the relational store.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if err := c.Realtime.Close(); err != nil {
		firstErr = err
	}
	if err := c.Storage.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
