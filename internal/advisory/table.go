package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

const DefaultTableURL = "https://www.se.com/ww/en/work/support/cybersecurity/security-notifications.jsp"

// TableLayout 描述渲染后表格的选择器和列名
type TableLayout struct {
	Container   string
	Cell        string
	Title       string
	CVE         string
	LastUpdated string
	Description string
	Severity    string
}

// SchneiderLayout 施耐德安全通告页面
var SchneiderLayout = TableLayout{
	Container:   "div.se2--table",
	Cell:        "td.se2-text-normal",
	Title:       "Title",
	CVE:         "CVE",
	LastUpdated: "Last updated",
	Description: "Description",
	Severity:    "Severity",
}

var sanitizer = strings.NewReplacer(
	"\u2022", "",
	"\u200b", " ",
	"\u00a0", " ",
	"\u2122", "",
)

// Sanitize 去除项目符号、零宽空格、不换行空格和商标符号
func Sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Replace(s))
}

// TableAdapter 抓取需要浏览器渲染的公告表格
type TableAdapter struct {
	renderer Renderer
	url      string
	layout   TableLayout
	logger   *utils.Logger
}

func NewTableAdapter(renderer Renderer, url string, layout TableLayout) *TableAdapter {
	if url == "" {
		url = DefaultTableURL
	}
	return &TableAdapter{
		renderer: renderer,
		url:      url,
		layout:   layout,
		logger:   utils.NewLogger("table"),
	}
}

func (a *TableAdapter) FetchAdvisories(ctx context.Context, products []string) ([]model.AdvisoryRecord, error) {
	html, err := a.renderer.Render(ctx, a.url, a.layout.Container)
	if err != nil {
		return nil, err
	}

	rows, err := ParseTable(html, a.layout)
	if err != nil {
		return nil, err
	}
	a.logger.Info("表格共 %d 行", len(rows))

	var records []model.AdvisoryRecord
	for _, row := range rows {
		title := row[a.layout.Title]
		if !matchesAny(title, products) {
			continue
		}

		ids := splitCVEs(row[a.layout.CVE])
		if len(ids) == 0 {
			a.logger.Warn("通告 %q 没有CVE编号，已跳过", title)
			continue
		}
		for _, id := range ids {
			records = append(records, model.AdvisoryRecord{
				ProductName: title,
				CVEID:       id,
				Severity:    row[a.layout.Severity],
				Description: row[a.layout.Description],
				LastUpdated: row[a.layout.LastUpdated],
				Link:        a.url,
			})
		}
	}
	return records, nil
}

// ParseTable 按表头把每一行映射为 列名 -> 单元格文本
func ParseTable(html string, layout TableLayout) ([]map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	table := doc.Find(layout.Container).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: 页面中没有 %s", common.ErrParse, layout.Container)
	}

	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, Sanitize(th.Text()))
	})

	var rows []map[string]string
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find(layout.Cell)
		if cells.Length() == 0 {
			return
		}
		row := make(map[string]string, len(headers))
		cells.Each(func(i int, td *goquery.Selection) {
			if i < len(headers) {
				row[headers[i]] = Sanitize(td.Text())
			}
		})
		rows = append(rows, row)
	})
	return rows, nil
}

func (a *TableAdapter) Close() error {
	return a.renderer.Close()
}
