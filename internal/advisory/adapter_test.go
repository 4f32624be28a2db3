package advisory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
)

type stubAdapter struct {
	closed bool
}

func (s *stubAdapter) FetchAdvisories(context.Context, []string) ([]model.AdvisoryRecord, error) {
	return nil, nil
}

func (s *stubAdapter) Close() error {
	s.closed = true
	return nil
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register("NVIDIA", func() (Adapter, error) { return &stubAdapter{}, nil })

	_, err := reg.Lookup("nvidia")
	assert.NoError(t, err)
	_, err = reg.Lookup("  NVIDIA ")
	assert.NoError(t, err)

	_, err = reg.Lookup("Acme")
	assert.ErrorIs(t, err, common.ErrUnsupportedVendor)

	assert.Equal(t, []string{"NVIDIA"}, reg.Vendors())
}

func TestUseReleasesOnEveryPath(t *testing.T) {
	stub := &stubAdapter{}
	factory := func() (Adapter, error) { return stub, nil }

	require.NoError(t, Use(factory, func(Adapter) error { return nil }))
	assert.True(t, stub.closed)

	stub.closed = false
	boom := errors.New("boom")
	err := Use(factory, func(Adapter) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, stub.closed)

	stub.closed = false
	assert.Panics(t, func() {
		_ = Use(factory, func(Adapter) error { panic("adapter crashed") })
	})
	assert.True(t, stub.closed)
}

func TestUseFactoryError(t *testing.T) {
	err := Use(func() (Adapter, error) { return nil, errors.New("no browser") }, func(Adapter) error {
		t.Fatal("不应执行")
		return nil
	})
	assert.ErrorIs(t, err, common.ErrAdapterFetch)
}

func TestSplitCVEs(t *testing.T) {
	assert.Equal(t, []string{"CVE-2024-0001", "CVE-2024-12345"},
		splitCVEs("cve-2024-0001, CVE-2024-12345 CVE-2024-0001"))
	assert.Empty(t, splitCVEs("N/A"))
}
