package advisory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Session 适配器实例独占的HTTP会话
type Session struct {
	client  *http.Client
	headers map[string]string
	cache   *Cache
	logger  *utils.Logger
}

func NewSession(timeout time.Duration, cache *Cache, logger *utils.Logger) *Session {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Session{
		client:  &http.Client{Timeout: timeout, Transport: transport},
		headers: map[string]string{"User-Agent": defaultUserAgent},
		cache:   cache,
		logger:  logger,
	}
}

// Get 获取URL内容，非200视为 ErrAdapterFetch；成功的响应写入缓存
func (s *Session) Get(ctx context.Context, url string) ([]byte, error) {
	if body, ok := s.cache.Get(ctx, url); ok {
		s.logger.Debug("缓存命中: %s", url)
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建请求失败: %v", common.ErrAdapterFetch, err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAdapterFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s 返回状态码 %d", common.ErrAdapterFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", common.ErrAdapterFetch, err)
	}

	s.cache.Set(ctx, url, body)
	return body, nil
}

// Close 释放会话持有的空闲连接
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
