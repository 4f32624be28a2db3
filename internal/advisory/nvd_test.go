package advisory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/cvedb"
)

func newNVDServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id := "CVE-2024-1000"
		switch {
		case q.Get("keywordSearch") == "broken":
			w.WriteHeader(http.StatusForbidden)
			return
		case q.Get("cveId") == "CVE-2099-0000":
			fmt.Fprint(w, `{"vulnerabilities": []}`)
			return
		case q.Get("cveId") != "":
			id = q.Get("cveId")
		}
		fmt.Fprintf(w, `{"vulnerabilities": [{"cve": {
			"id": %q, "published": "2024-01-02T00:00:00.000", "lastModified": "2024-02-03T00:00:00.000",
			"vulnStatus": "Analyzed",
			"descriptions": [{"lang": "en", "value": "Heap overflow in %s"}],
			"metrics": {"cvssMetricV31": [{"cvssData": {"baseScore": 7.8, "baseSeverity": "HIGH"}}]},
			"references": [{"url": "https://vendor.example/advisory"}]
		}}]}`, id, q.Get("keywordSearch"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestNVD(srv *httptest.Server) *NVDAdapter {
	client := cvedb.NewCVEAPIClient("",
		cvedb.WithBaseURL(srv.URL),
		cvedb.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	return NewNVDAdapter(client)
}

func TestNVDAdapterPartialFailure(t *testing.T) {
	a := newTestNVD(newNVDServer(t))
	defer a.Close()

	records, err := a.FetchAdvisories(context.Background(), []string{"GeForce", "broken", ""})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "GeForce", records[0].ProductName)
	assert.Equal(t, "CVE-2024-1000", records[0].CVEID)
	assert.Equal(t, "HIGH", records[0].Severity)
	assert.Equal(t, "https://vendor.example/advisory", records[0].Link)
}

func TestNVDAdapterAllFail(t *testing.T) {
	a := newTestNVD(newNVDServer(t))
	defer a.Close()

	_, err := a.FetchAdvisories(context.Background(), []string{"broken"})
	assert.ErrorIs(t, err, common.ErrAdapterFetch)
}

func TestNVDAdapterFetchByCVE(t *testing.T) {
	a := newTestNVD(newNVDServer(t))
	defer a.Close()

	rec, err := a.FetchByCVE(context.Background(), "CVE-2023-4242")
	require.NoError(t, err)
	assert.Equal(t, "CVE-2023-4242", rec.CVEID)
	assert.Equal(t, "2024-01-02T00:00:00.000", rec.Published)

	_, err = a.FetchByCVE(context.Background(), "CVE-2099-0000")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
