package payload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CyberAlerter/internal/common"
)

const sampleSubmission = `{
  userId: '6752b04e67108c31580d4b53',
  productId: 'e6af77c6-1b43-4ab1-a403-f928c76b9a08',
  vendorName: 'Tech Solutions',
  productName: 'P1'
}
{
  userId: '6752b04e67108c31580d4b53',
  productId: 'eedf45a3-7eab-4a9f-b000-67c82883b186',
  vendorName: 'Tech Solutions',
  productName: 'P2'
}
{
  userId: '6752b04e67108c31580d4b53',
  productId: 'eda402e7-1d07-4e45-ab8f-3a1bc636dfe7',
  vendorName: 'Hardware Systems Ltd.',
  productName: 'P3'
}`

func TestNormalize_GroupsByVendorInFirstSeenOrder(t *testing.T) {
	sub, err := Normalize(sampleSubmission)
	require.NoError(t, err)

	assert.Equal(t, "6752b04e67108c31580d4b53", sub.UserID)
	assert.Equal(t, "", sub.Email)
	require.Len(t, sub.ScanData, 2)

	assert.Equal(t, "Tech Solutions", sub.ScanData[0].Vendor)
	assert.Equal(t, []string{"P1", "P2"}, sub.ScanData[0].ProductNames())
	assert.Equal(t, "e6af77c6-1b43-4ab1-a403-f928c76b9a08", sub.ScanData[0].Products["P1"])

	assert.Equal(t, "Hardware Systems Ltd.", sub.ScanData[1].Vendor)
	assert.Equal(t, map[string]string{"P3": "eda402e7-1d07-4e45-ab8f-3a1bc636dfe7"}, sub.ScanData[1].Products)
}

func TestNormalize_DuplicateProductLastWins(t *testing.T) {
	raw := `{userId: 'u1', productId: 'first', vendorName: 'A', productName: 'X'}
{userId: 'u1', productId: 'y', vendorName: 'A', productName: 'Y'}
{userId: 'u1', productId: 'second', vendorName: 'A', productName: 'X'}
{userId: 'u1', productId: 'z', vendorName: 'B', productName: 'Z'}`

	sub, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, sub.ScanData, 2)

	assert.Equal(t, []string{"X", "Y"}, sub.ScanData[0].ProductNames())
	assert.Equal(t, "second", sub.ScanData[0].Products["X"])
	assert.Equal(t, "B", sub.ScanData[1].Vendor)
}

func TestNormalize_AcceptsCommaSeparatedAndArrayForms(t *testing.T) {
	cases := map[string]string{
		"comma separated": `{userId: 'u1', vendorName: 'A', productName: 'X',}, {userId: 'u1', vendorName: 'A', productName: 'Y'}`,
		"array":           `[{userId: 'u1', vendorName: 'A', productName: 'X'}, {"userId": "u1", "vendorName": "A", "productName": "Y"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			sub, err := Normalize(raw)
			require.NoError(t, err)
			require.Len(t, sub.ScanData, 1)
			assert.Equal(t, []string{"X", "Y"}, sub.ScanData[0].ProductNames())
		})
	}
}

func TestNormalize_NumericProductID(t *testing.T) {
	raw := `{userId: 'u1', productId: 42, vendorName: 'A', productName: 'X'}
{userId: 'u1', productId: 7.5e1, vendorName: 'A', productName: 'Y'}
{userId: 'u1', productId: null, vendorName: 'B', productName: 'Z'}`

	sub, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, sub.ScanData, 2)
	assert.Equal(t, "42", sub.ScanData[0].Products["X"])
	assert.Equal(t, "7.5e1", sub.ScanData[0].Products["Y"])
	assert.Equal(t, "", sub.ScanData[1].Products["Z"])

	_, err = Normalize(`{userId: 'u1', productId: true, vendorName: 'A', productName: 'X'}`)
	assert.ErrorIs(t, err, common.ErrMalformedPayload)
}

func TestNormalize_QuotesInsideValues(t *testing.T) {
	raw := `{userId: 'u1', vendorName: 'Acme "Labs"', productName: 'Router: v2, it\'s new'}`

	sub, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, sub.ScanData, 1)
	assert.Equal(t, `Acme "Labs"`, sub.ScanData[0].Vendor)
	assert.Equal(t, []string{"Router: v2, it's new"}, sub.ScanData[0].ProductNames())
}

func TestNormalize_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   \n\t"} {
		sub, err := Normalize(raw)
		require.NoError(t, err)
		assert.Empty(t, sub.ScanData)
		assert.NotNil(t, sub.ScanData)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := map[string]string{
		"unterminated string": `{userId: 'u1, vendorName: 'A'}`,
		"unbalanced braces":   `{userId: 'u1', vendorName: 'A', productName: 'X'`,
		"garbage":             `userId = u1`,
		"missing user":        `{vendorName: 'A', productName: 'X'}`,
		"missing product":     `{userId: 'u1', vendorName: 'A'}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrMalformedPayload), "got %v", err)
		})
	}
}

func TestToRegistration(t *testing.T) {
	sub, err := Normalize(sampleSubmission)
	require.NoError(t, err)

	reg := ToRegistration(sub, "user@example.com")
	assert.Equal(t, "6752b04e67108c31580d4b53", reg.UserID)
	assert.Equal(t, "user@example.com", reg.Email)
	require.Len(t, reg.ScanData, 2)
	assert.Equal(t, []string{"P1", "P2"}, reg.ScanData[0].Products)
	assert.Nil(t, reg.ScanData[0].VendorWebsite)
	assert.Equal(t, []string{"P3"}, reg.ScanData[1].Products)
}
