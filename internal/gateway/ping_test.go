package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/gateway"
)

func TestClient_PingPostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	gw := gateway.New(db, gateway.Options{Logger: zap.NewNop()})

	mock.ExpectPing()
	assert.NoError(t, gw.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.EqualError(t, gw.Ping(context.Background()), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}
