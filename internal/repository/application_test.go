package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/testutil"
)

func TestApplicationRepository(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewApplicationRepository(gw, zap.NewNop())
	ctx := context.Background()

	landlord := testutil.CreateProfile(t, gw, "Landlord", model.RoleLandlord, true)
	other := testutil.CreateProfile(t, gw, "Other", model.RoleLandlord, true)
	tenant := testutil.CreateProfile(t, gw, "Tenant", model.RoleTenant, true)
	prop := testutil.CreateProperty(t, gw, landlord.ID, "Loft")

	app, err := repo.Submit(ctx, tenant.ID, prop.ID, "I would love to rent this")
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationSubmitted, app.Status)

	_, err = repo.Submit(ctx, tenant.ID, prop.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = repo.Submit(ctx, landlord.ID, prop.ID, "mine")
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = repo.Submit(ctx, tenant.ID, "missing", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list := repo.ListForLandlord(ctx, landlord.ID)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Tenant)
	assert.Equal(t, "Tenant", list[0].Tenant.FullName)
	assert.Empty(t, repo.ListForLandlord(ctx, other.ID))

	assert.NotNil(t, repo.Get(ctx, tenant.ID, app.ID))
	assert.NotNil(t, repo.Get(ctx, landlord.ID, app.ID))
	assert.Nil(t, repo.Get(ctx, other.ID, app.ID))

	_, err = repo.Review(ctx, other.ID, app.ID, model.ApplicationAccepted)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.Review(ctx, landlord.ID, app.ID, model.ApplicationSubmitted)
	assert.ErrorAs(t, err, &validation)

	reviewed, err := repo.Review(ctx, landlord.ID, app.ID, model.ApplicationAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationAccepted, reviewed.Status)
	assert.NotNil(t, reviewed.ReviewedAt)

	_, err = repo.Review(ctx, landlord.ID, app.ID, model.ApplicationRejected)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
