package cvedb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"CyberAlerter/internal/common"
)

const sampleNVDResponse = `{
  "resultsPerPage": 2,
  "startIndex": 0,
  "totalResults": 2,
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2024-0001",
        "published": "2024-01-10T10:00:00.000",
        "lastModified": "2024-02-01T12:30:00.000",
        "vulnStatus": "Analyzed",
        "descriptions": [{"lang": "en", "value": "  Buffer overflow in NeMo.  "}],
        "metrics": {
          "cvssMetricV31": [{"source": "nvd@nist.gov", "type": "Primary",
            "cvssData": {"version": "3.1", "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", "baseScore": 9.8, "baseSeverity": "CRITICAL"}}]
        },
        "references": [{"url": "https://nvidia.custhelp.com/app/answers/detail/a_id/5500", "source": "psirt@nvidia.com"}]
      }
    },
    {
      "cve": {
        "id": "CVE-2024-0002",
        "published": "2024-03-01T00:00:00.000",
        "lastModified": "2024-03-02T00:00:00.000",
        "vulnStatus": "Awaiting Analysis",
        "descriptions": [{"lang": "es", "value": "Descripción"}, {"lang": "en", "value": "Improper input validation."}],
        "metrics": {
          "cvssMetricV2": [{"source": "nvd@nist.gov", "type": "Primary",
            "cvssData": {"version": "2.0", "vectorString": "AV:N/AC:L/Au:N/C:P/I:P/A:P", "baseScore": 7.5}, "baseSeverity": "HIGH"}]
        },
        "references": []
      }
    }
  ]
}`

func newTestClient(url string) *CVEAPIClient {
	return NewCVEAPIClient("test-key", WithBaseURL(url), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
}

func TestNewCVEAPIClient(t *testing.T) {
	client := NewCVEAPIClient("")
	if client == nil {
		t.Fatal("NewCVEAPIClient() 返回 nil")
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("期望baseURL为 %s, 实际得到 %s", DefaultBaseURL, client.baseURL)
	}
	if client.logger == nil {
		t.Error("logger 不应为 nil")
	}
	if client.httpClient == nil {
		t.Error("httpClient 不应为 nil")
	}
	if client.limiter == nil {
		t.Error("limiter 不应为 nil")
	}
}

func TestSearchByKeyword(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("期望GET请求, 实际得到 %s", r.Method)
		}
		if got := r.URL.Query().Get("keywordSearch"); got != "NeMo" {
			t.Errorf("期望 keywordSearch=NeMo, 实际得到 %q", got)
		}
		if r.URL.Query().Has("cveId") {
			t.Error("关键字查询不应携带 cveId")
		}
		if got := r.Header.Get("apiKey"); got != "test-key" {
			t.Errorf("期望 apiKey 头为 test-key, 实际得到 %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleNVDResponse))
	}))
	defer testServer.Close()

	client := newTestClient(testServer.URL)
	results, err := client.Search(context.Background(), Query{Keyword: "NeMo"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("期望 2 个结果, 实际得到 %d", len(results))
	}

	first := results[0]
	if first.CVEID != "CVE-2024-0001" {
		t.Errorf("期望CVE ID为 CVE-2024-0001, 实际得到 %s", first.CVEID)
	}
	if first.Description != "Buffer overflow in NeMo." {
		t.Errorf("描述未去除首尾空白: %q", first.Description)
	}
	if first.BaseScore == nil || *first.BaseScore != 9.8 {
		t.Errorf("期望CVSS分数为 9.8, 实际得到 %v", first.BaseScore)
	}
	if first.BaseSeverity == nil || *first.BaseSeverity != "CRITICAL" {
		t.Errorf("期望严重性为 CRITICAL, 实际得到 %v", first.BaseSeverity)
	}
	if first.OEMURL == nil || *first.OEMURL != "https://nvidia.custhelp.com/app/answers/detail/a_id/5500" {
		t.Errorf("参考链接不匹配: %v", first.OEMURL)
	}
	if first.Published != "2024-01-10T10:00:00.000" || first.LastModified != "2024-02-01T12:30:00.000" {
		t.Errorf("日期不匹配: %s / %s", first.Published, first.LastModified)
	}
	if first.VulnStatus != "Analyzed" {
		t.Errorf("期望 vulnStatus 为 Analyzed, 实际得到 %s", first.VulnStatus)
	}

	second := results[1]
	if second.OEMURL != nil {
		t.Errorf("缺少参考链接时 oemUrl 应为 nil, 实际得到 %v", *second.OEMURL)
	}
	if second.Description != "Improper input validation." {
		t.Errorf("应优先使用英文描述, 实际得到 %q", second.Description)
	}
	if second.BaseScore == nil || *second.BaseScore != 7.5 {
		t.Errorf("期望v2分数为 7.5, 实际得到 %v", second.BaseScore)
	}
	if second.BaseSeverity == nil || *second.BaseSeverity != "HIGH" {
		t.Errorf("期望v2严重性为 HIGH, 实际得到 %v", second.BaseSeverity)
	}
}

func TestSearchByCVEID(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cveId"); got != "CVE-2024-0001" {
			t.Errorf("期望 cveId=CVE-2024-0001, 实际得到 %q", got)
		}
		if r.URL.Query().Has("keywordSearch") {
			t.Error("CVE查询不应携带 keywordSearch")
		}
		w.Write([]byte(`{"vulnerabilities": []}`))
	}))
	defer testServer.Close()

	results, err := newTestClient(testServer.URL).Search(context.Background(), Query{CVEID: "CVE-2024-0001"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("期望 0 个结果, 实际得到 %d", len(results))
	}
}

func TestSearchRejectsInvalidQuery(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")

	for _, q := range []Query{{}, {Keyword: "nemo", CVEID: "CVE-2024-0001"}} {
		_, err := client.Search(context.Background(), q)
		if !errors.Is(err, common.ErrInvalidQuery) {
			t.Errorf("查询 %+v 期望 ErrInvalidQuery, 实际得到 %v", q, err)
		}
	}
}

func TestSearchWithAPIError(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	}))
	defer testServer.Close()

	_, err := newTestClient(testServer.URL).Search(context.Background(), Query{Keyword: "nemo"})
	if err == nil {
		t.Fatal("期望返回错误")
	}
	if !errors.Is(err, common.ErrAdapterFetch) {
		t.Errorf("期望 ErrAdapterFetch, 实际得到 %v", err)
	}
}

func TestSearchWithBrokenJSON(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vulnerabilities": [`))
	}))
	defer testServer.Close()

	_, err := newTestClient(testServer.URL).Search(context.Background(), Query{Keyword: "nemo"})
	if !errors.Is(err, common.ErrParse) {
		t.Errorf("期望 ErrParse, 实际得到 %v", err)
	}
}

func TestSearchHonoursContextCancel(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(testServer.URL).Search(ctx, Query{Keyword: "nemo"})
	if !errors.Is(err, common.ErrAdapterFetch) {
		t.Errorf("期望 ErrAdapterFetch, 实际得到 %v", err)
	}
}
