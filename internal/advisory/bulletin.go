package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

const (
	DefaultBulletinURL       = "https://www.nvidia.com/content/dam/en-zz/Solutions/product-security/product-security.json"
	DefaultBulletinDetailURL = `https://nvidia.custhelp.com/app/answers/detail/a_id/\d+`
)

// bulletinIndex 公告索引JSON
type bulletinIndex struct {
	Data []bulletinEntry `json:"data"`
}

type bulletinEntry struct {
	Title       string `json:"title"`
	CVEs        string `json:"cve identifier(s)"`
	Severity    string `json:"severity"`
	PublishDate string `json:"publish date"`
	LastUpdated string `json:"last updated"`
}

type detailRow struct {
	cveID       string
	description string
}

var (
	anchorPattern = regexp.MustCompile(`>(.+?)</a>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// BulletinAdapter 读取静态JSON公告索引，再逐条抓取详情页表格
type BulletinAdapter struct {
	session     *Session
	indexURL    string
	detailURL   *regexp.Regexp
	concurrency int
	logger      *utils.Logger
}

// NewBulletinAdapter detailPattern 为空时使用NVIDIA详情页格式
func NewBulletinAdapter(session *Session, indexURL, detailPattern string, concurrency int) (*BulletinAdapter, error) {
	if indexURL == "" {
		indexURL = DefaultBulletinURL
	}
	if detailPattern == "" {
		detailPattern = DefaultBulletinDetailURL
	}
	re, err := regexp.Compile(detailPattern)
	if err != nil {
		return nil, fmt.Errorf("详情页链接格式无效: %v", err)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BulletinAdapter{
		session:     session,
		indexURL:    indexURL,
		detailURL:   re,
		concurrency: concurrency,
		logger:      utils.NewLogger("bulletin"),
	}, nil
}

func (a *BulletinAdapter) FetchAdvisories(ctx context.Context, products []string) ([]model.AdvisoryRecord, error) {
	body, err := a.session.Get(ctx, a.indexURL)
	if err != nil {
		return nil, err
	}

	var index bulletinIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("%w: 公告索引解析失败: %v", common.ErrParse, err)
	}

	var matched []bulletinEntry
	for _, entry := range index.Data {
		if matchesAny(entry.Title, products) {
			matched = append(matched, entry)
		}
	}
	a.logger.Info("公告索引共 %d 条，匹配 %d 条", len(index.Data), len(matched))

	// 每条公告的结果写入独立槽位
	results := make([][]model.AdvisoryRecord, len(matched))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, entry := range matched {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = a.entryRecords(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	var records []model.AdvisoryRecord
	for _, r := range results {
		records = append(records, r...)
	}
	return records, nil
}

// entryRecords 单条公告失败不影响其他公告，详情页不可用时退回索引中的CVE列表
func (a *BulletinAdapter) entryRecords(ctx context.Context, entry bulletinEntry) []model.AdvisoryRecord {
	product := productFromTitle(entry.Title)
	link := a.detailURL.FindString(entry.Title)

	base := model.AdvisoryRecord{
		ProductName: product,
		Severity:    strings.TrimSpace(entry.Severity),
		Published:   strings.TrimSpace(entry.PublishDate),
		LastUpdated: strings.TrimSpace(entry.LastUpdated),
		Link:        link,
	}
	if link == "" {
		base.Link = a.indexURL
	}

	var rows []detailRow
	if link != "" {
		var err error
		rows, err = a.fetchDetail(ctx, link)
		if err != nil {
			a.logger.Warn("公告 %s 详情页获取失败: %v", product, err)
		}
	} else {
		a.logger.Debug("公告 %s 没有详情页链接", product)
	}

	var records []model.AdvisoryRecord
	for _, row := range rows {
		rec := base
		rec.CVEID = row.cveID
		rec.Description = row.description
		records = append(records, rec)
	}
	if len(records) > 0 {
		return records
	}

	for _, id := range splitCVEs(entry.CVEs) {
		rec := base
		rec.CVEID = id
		records = append(records, rec)
	}
	if len(records) == 0 {
		a.logger.Warn("公告 %s 没有可用的CVE编号，已跳过", product)
	}
	return records
}

func (a *BulletinAdapter) fetchDetail(ctx context.Context, url string) ([]detailRow, error) {
	body, err := a.session.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseDetailTable(body)
}

// parseDetailTable 解析详情页 figure.table 中 CVE编号 / 描述 两列
func parseDetailTable(body []byte) ([]detailRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	table := doc.Find("figure.table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: 详情页没有表格", common.ErrParse)
	}

	var rows []detailRow
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		ids := splitCVEs(cells.Eq(0).Text())
		desc := strings.TrimSpace(cells.Eq(1).Text())
		for _, id := range ids {
			rows = append(rows, detailRow{cveID: id, description: desc})
		}
	})

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: 详情页表格中没有CVE", common.ErrParse)
	}
	return rows, nil
}

func productFromTitle(title string) string {
	if m := anchorPattern.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(tagPattern.ReplaceAllString(title, ""))
}

func (a *BulletinAdapter) Close() error {
	return a.session.Close()
}
