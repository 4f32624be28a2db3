// Package advisory 实现各厂商安全公告的抓取适配器。
// 每个适配器实例持有自己的网络或浏览器会话，由 Use 保证在任何退出路径上释放。
package advisory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
)

// Adapter 给定产品名列表，返回规范化的公告记录
type Adapter interface {
	FetchAdvisories(ctx context.Context, products []string) ([]model.AdvisoryRecord, error)
	Close() error
}

// Factory 创建一个新的适配器实例
type Factory func() (Adapter, error)

// Registry 厂商名（不区分大小写）到适配器工厂的映射
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	names     map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		names:     make(map[string]string),
	}
}

func (r *Registry) Register(vendor string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(vendor))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
	r.names[key] = vendor
}

// Lookup 查找厂商对应的工厂，未注册时返回 ErrUnsupportedVendor
func (r *Registry) Lookup(vendor string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(vendor))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedVendor, vendor)
	}
	return f, nil
}

// Vendors 返回已注册的厂商名
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Use 创建适配器并执行 fn，无论成功、出错还是 panic 都会关闭适配器
func Use(factory Factory, fn func(Adapter) error) (err error) {
	adapter, err := factory()
	if err != nil {
		return fmt.Errorf("%w: 创建适配器失败: %v", common.ErrAdapterFetch, err)
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("关闭适配器失败: %w", cerr))
		}
	}()
	return fn(adapter)
}

var cvePattern = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)

// splitCVEs 从任意文本中提取CVE编号，去重并保持顺序
func splitCVEs(text string) []string {
	matches := cvePattern.FindAllString(strings.ToUpper(text), -1)
	seen := make(map[string]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// matchesAny 不区分大小写的子串匹配
func matchesAny(text string, products []string) bool {
	lower := strings.ToLower(text)
	for _, p := range products {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
