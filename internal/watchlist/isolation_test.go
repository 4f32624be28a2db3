package watchlist

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(db), mock
}

func TestRegisterProductsIsolatesFailures(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, vendor, vendor_website, product_name FROM user_products").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, vendor, vendor_website, product_name FROM user_products").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "vendor", "vendor_website", "product_name"}))
	mock.ExpectExec("INSERT INTO user_products").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stats, err := store.RegisterProducts(context.Background(), "u1", []model.VendorProducts{
		{Vendor: "NVIDIA", Products: []string{"GeForce", "Jetson"}},
	})
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, ProductStats{Inserted: 1, Failed: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertVulnerabilitiesIsolatesFailures(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO vulnerabilities").WillReturnError(errors.New("constraint failed"))
	mock.ExpectExec("INSERT INTO vulnerabilities").WillReturnResult(sqlmock.NewResult(1, 1))

	stored, failed := store.UpsertVulnerabilities(context.Background(), []model.Vulnerability{
		{CVEID: "CVE-2024-0001"},
		{CVEID: "CVE-2024-0002"},
	})
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTouchesOnlyChangedColumns(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, vendor, vendor_website, product_name FROM user_products").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "vendor", "vendor_website", "product_name"}).
			AddRow("u1", "NVIDIA", nil, "GeForce"))
	mock.ExpectExec(`UPDATE user_products SET vendor_website = \?, updated_at = \? WHERE id = \? AND user_id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	site := "https://www.nvidia.com"
	stats, err := store.RegisterProducts(context.Background(), "u1", []model.VendorProducts{
		{Vendor: "NVIDIA", VendorWebsite: &site, Products: []string{"GeForce"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ProductStats{Updated: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
