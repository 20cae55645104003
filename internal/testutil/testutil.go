// Package testutil builds a migrated in-memory gateway for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/migration"
	"github.com/beesaferoot/tenantly/internal/model"
)

const TestSecret = "test-secret"

// NewGateway opens a private in-memory SQLite database, applies every schema
// migration and returns a gateway over it.
func NewGateway(t *testing.T) *gateway.Client {
	t.Helper()

	db, err := gateway.OpenDB(config.DatabaseConfig{
		Driver:   "sqlite",
		URL:      fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel: "silent",
	})
	require.NoError(t, err)

	_, err = migration.NewMigrator(db).Up()
	require.NoError(t, err)

	gw := gateway.New(db, gateway.Options{
		Auth:    gateway.AuthOptions{Secret: TestSecret, SessionTTL: time.Hour},
		Storage: gateway.NewMemoryStore("http://localhost/storage"),
		Logger:  zap.NewNop(),
	})
	t.Cleanup(func() { _ = gw.Close(context.Background()) })
	return gw
}

// CreateProfile inserts a profile with the given role.
func CreateProfile(t *testing.T, gw *gateway.Client, name string, role model.Role, onboarded bool) *model.Profile {
	t.Helper()
	p := &model.Profile{
		FullName:            name,
		Email:               fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Role:                role,
		OnboardingCompleted: onboarded,
		ProfileCompleted:    onboarded,
	}
	require.NoError(t, gw.DB.Create(p).Error)
	return p
}

// CreateProperty inserts a property owned by landlordID.
func CreateProperty(t *testing.T, gw *gateway.Client, landlordID, title string) *model.Property {
	t.Helper()
	p := &model.Property{
		LandlordID: landlordID,
		Title:      title,
		Price:      1200,
		Address:    "1 Main St",
		ImageURLs:  []string{},
	}
	require.NoError(t, gw.DB.Create(p).Error)
	return p
}

// SignUp registers a user and returns its session.
func SignUp(t *testing.T, gw *gateway.Client, name string) *gateway.Session {
	t.Helper()
	email := fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8])
	s, err := gw.Auth.SignUp(context.Background(), email, "password123", name)
	require.NoError(t, err)
	return s
}
