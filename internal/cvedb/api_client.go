package cvedb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

const DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0/"

// CVEAPIClient 用于从NVD API获取CVE数据的客户端
type CVEAPIClient struct {
	baseURL    string
	apiKey     string
	logger     *utils.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption 客户端可选配置
type ClientOption func(*CVEAPIClient)

// WithBaseURL 覆盖NVD接口地址
func WithBaseURL(baseURL string) ClientOption {
	return func(c *CVEAPIClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient 使用调用方持有的 http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *CVEAPIClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter 替换默认限速器
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *CVEAPIClient) {
		c.limiter = l
	}
}

// DefaultLimiter NVD公开限速：有API Key时每0.6秒一次请求，没有时每6秒一次
func DefaultLimiter(apiKey string) *rate.Limiter {
	interval := 6 * time.Second
	if apiKey != "" {
		interval = 600 * time.Millisecond
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// NewCVEAPIClient 创建新的CVE API客户端
func NewCVEAPIClient(apiKey string, opts ...ClientOption) *CVEAPIClient {
	client := &CVEAPIClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		logger:  utils.NewLogger("cve-api-client"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  false,
				MaxIdleConnsPerHost: 10,
			},
		},
		limiter: DefaultLimiter(apiKey),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Query NVD查询条件，Keyword 与 CVEID 必须且只能设置一个
type Query struct {
	Keyword string
	CVEID   string
}

func (q Query) validate() error {
	switch {
	case q.Keyword != "" && q.CVEID != "":
		return fmt.Errorf("%w: keywordSearch 与 cveId 不能同时使用", common.ErrInvalidQuery)
	case q.Keyword == "" && q.CVEID == "":
		return fmt.Errorf("%w: 需要 keywordSearch 或 cveId", common.ErrInvalidQuery)
	}
	return nil
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keywordSearch", q.Keyword)
	} else {
		v.Set("cveId", q.CVEID)
	}
	return v
}

// Search 按关键字或CVE编号查询NVD并解析结果
func (client *CVEAPIClient) Search(ctx context.Context, q Query) ([]model.NVDResult, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	body, err := client.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	results, err := ParseNVDResponse(body, client.logger)
	if err != nil {
		return nil, err
	}

	client.logger.Debug("查询 %v 获取到 %d 个CVE", q.values(), len(results))
	return results, nil
}

func (client *CVEAPIClient) fetch(ctx context.Context, q Query) ([]byte, error) {
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: 等待限速失败: %v", common.ErrAdapterFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建请求失败: %v", common.ErrAdapterFetch, err)
	}
	req.URL.RawQuery = q.values().Encode()

	// 设置请求头，NVD要求小写的 apiKey
	req.Header.Set("User-Agent", "CyberAlerter/1.0")
	req.Header.Set("Accept", "application/json")
	if client.apiKey != "" {
		req.Header["apiKey"] = []string{client.apiKey}
	}

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTP请求失败: %v", common.ErrAdapterFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: API返回错误: %s, 响应: %s", common.ErrAdapterFetch, resp.Status, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", common.ErrAdapterFetch, err)
	}
	return body, nil
}

// CloseIdleConnections 释放客户端持有的空闲连接
func (client *CVEAPIClient) CloseIdleConnections() {
	client.httpClient.CloseIdleConnections()
}
