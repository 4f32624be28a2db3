// Package scanner 按厂商并发调度公告适配器，并把结果写回监控列表。
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"CyberAlerter/internal/advisory"
	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

// Store 扫描周期用到的存储操作
type Store interface {
	ListProductsForUsers(ctx context.Context, userIDs []string) (map[string]map[string][]string, error)
	UpsertVulnerabilities(ctx context.Context, vulns []model.Vulnerability) (stored, failed int)
	RecordScanRun(ctx context.Context, report *model.CycleReport) error
}

type Orchestrator struct {
	store       Store
	registry    *advisory.Registry
	timeout     time.Duration
	threads     int
	nvdFallback bool
	logger      *utils.Logger
	now         func() time.Time
}

type Option func(*Orchestrator)

// WithTimeout 单个厂商适配器的超时
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithThreads(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.threads = n
		}
	}
}

// WithNVDFallback 没有专用适配器的厂商改用NVD关键字查询
func WithNVDFallback(enabled bool) Option {
	return func(o *Orchestrator) {
		o.nvdFallback = enabled
	}
}

func NewOrchestrator(store Store, registry *advisory.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		registry: registry,
		timeout:  5 * time.Minute,
		threads:  4,
		logger:   utils.NewLogger("scanner"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type vendorJob struct {
	index    int
	vendor   string
	products []string
	factory  advisory.Factory
}

// RunScanCycle 读取用户产品，按厂商合并后并发抓取并保存漏洞。
// 单个厂商失败只记录在结果中，周期总会处理完所有厂商。
func (o *Orchestrator) RunScanCycle(ctx context.Context, userIDs []string) (*model.CycleReport, error) {
	report := &model.CycleReport{
		RunID:     uuid.NewString(),
		UserIDs:   uniqueIDs(userIDs),
		StartedAt: o.now(),
	}
	logger := o.logger.WithField("run_id", report.RunID)

	byUser, err := o.store.ListProductsForUsers(ctx, report.UserIDs)
	if err != nil {
		return report, fmt.Errorf("读取用户产品失败: %w", err)
	}

	byVendor := VendorProducts(byUser)
	vendors := make([]string, 0, len(byVendor))
	for vendor := range byVendor {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)
	logger.Info("开始扫描周期: %d 个用户, %d 个厂商", len(report.UserIDs), len(vendors))

	report.Vendors = make([]model.VendorOutcome, len(vendors))
	var jobs []vendorJob
	for i, vendor := range vendors {
		factory, err := o.lookup(vendor)
		if err != nil {
			logger.Warn("厂商 %s 没有可用的适配器，跳过", vendor)
			report.Vendors[i] = model.VendorOutcome{
				Vendor:   vendor,
				Products: byVendor[vendor],
				Status:   model.VendorSkipped,
				Error:    err.Error(),
			}
			continue
		}
		jobs = append(jobs, vendorJob{index: i, vendor: vendor, products: byVendor[vendor], factory: factory})
	}

	jobChan := make(chan vendorJob, len(jobs))
	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	var wg sync.WaitGroup
	for i := 0; i < o.threads && i < len(jobs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				start := o.now()
				outcome := o.runVendor(ctx, job)
				outcome.Duration = o.now().Sub(start)
				// 每个 job 写入自己的槽位
				report.Vendors[job.index] = outcome
			}
		}()
	}
	wg.Wait()

	report.FinishedAt = o.now()
	logger.Info("扫描周期结束: 成功 %d, 失败 %d, 跳过 %d",
		report.Count(model.VendorSucceeded), report.Count(model.VendorFailed), report.Count(model.VendorSkipped))

	if err := o.store.RecordScanRun(ctx, report); err != nil {
		logger.Warn("保存扫描记录失败: %v", err)
	}
	return report, nil
}

func (o *Orchestrator) lookup(vendor string) (advisory.Factory, error) {
	factory, err := o.registry.Lookup(vendor)
	if err == nil || !o.nvdFallback {
		return factory, err
	}
	if nvd, nvdErr := o.registry.Lookup("NVD"); nvdErr == nil {
		o.logger.Debug("厂商 %s 改用NVD查询", vendor)
		return nvd, nil
	}
	return nil, err
}

func (o *Orchestrator) runVendor(ctx context.Context, job vendorJob) model.VendorOutcome {
	logger := o.logger.WithField("vendor", job.vendor)
	outcome := model.VendorOutcome{
		Vendor:   job.vendor,
		Products: job.products,
		Status:   model.VendorFailed,
	}

	records, err := o.fetch(ctx, job)
	if err != nil {
		logger.Warn("抓取失败: %v", err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Advisories = len(records)
	if len(records) == 0 {
		logger.Warn("没有返回任何公告")
		outcome.Error = "没有返回任何公告"
		return outcome
	}

	vulns := make([]model.Vulnerability, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.CVEID) == "" {
			outcome.Failed++
			continue
		}
		vulns = append(vulns, model.VulnerabilityFromAdvisory(job.vendor, rec))
	}

	stored, failed := o.store.UpsertVulnerabilities(ctx, vulns)
	outcome.Stored = stored
	outcome.Failed += failed
	if stored == 0 {
		outcome.Error = fmt.Sprintf("%d 条公告均未保存", len(records))
		return outcome
	}

	outcome.Status = model.VendorSucceeded
	logger.Info("保存 %d 条漏洞, 失败 %d 条", stored, outcome.Failed)
	return outcome
}

type fetchResult struct {
	records []model.AdvisoryRecord
	err     error
}

// fetch 在独立 goroutine 中运行适配器，超时或 panic 都转换为该厂商的失败
func (o *Orchestrator) fetch(ctx context.Context, job vendorJob) ([]model.AdvisoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%w: 适配器异常: %v", common.ErrAdapterFetch, r)}
			}
		}()

		var records []model.AdvisoryRecord
		err := advisory.Use(job.factory, func(a advisory.Adapter) error {
			var err error
			records, err = a.FetchAdvisories(ctx, job.products)
			return err
		})
		done <- fetchResult{records: records, err: err}
	}()

	select {
	case r := <-done:
		return r.records, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s 超时: %v", common.ErrAdapterFetch, job.vendor, ctx.Err())
	}
}

// VendorProducts 把 用户 -> 厂商 -> 产品 合并为 厂商 -> 去重排序后的产品并集
func VendorProducts(byUser map[string]map[string][]string) map[string][]string {
	sets := make(map[string]map[string]bool)
	for _, vendors := range byUser {
		for vendor, products := range vendors {
			if sets[vendor] == nil {
				sets[vendor] = make(map[string]bool)
			}
			for _, p := range products {
				sets[vendor][p] = true
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for vendor, set := range sets {
		products := make([]string, 0, len(set))
		for p := range set {
			products = append(products, p)
		}
		sort.Strings(products)
		out[vendor] = products
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
