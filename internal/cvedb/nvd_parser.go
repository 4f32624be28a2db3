package cvedb

import (
	"encoding/json"
	"fmt"
	"strings"

	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

// NVDResponse NVD API响应结构，漏洞条目逐条解析
type NVDResponse struct {
	ResultsPerPage  int                `json:"resultsPerPage"`
	StartIndex      int                `json:"startIndex"`
	TotalResults    int                `json:"totalResults"`
	Vulnerabilities *[]json.RawMessage `json:"vulnerabilities"`
}

// NVDVulnerability NVD漏洞数据结构
type NVDVulnerability struct {
	CVE NVDCVE `json:"cve"`
}

type NVDCVE struct {
	ID               string         `json:"id"`
	SourceIdentifier string         `json:"sourceIdentifier"`
	Published        string         `json:"published"`
	LastModified     string         `json:"lastModified"`
	VulnStatus       string         `json:"vulnStatus"`
	Descriptions     []LangValue    `json:"descriptions"`
	Metrics          NVDMetrics     `json:"metrics"`
	References       []NVDReference `json:"references"`
}

type LangValue struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type NVDMetrics struct {
	CvssMetricV40 []CVSSMetric `json:"cvssMetricV40"`
	CvssMetricV31 []CVSSMetric `json:"cvssMetricV31"`
	CvssMetricV30 []CVSSMetric `json:"cvssMetricV30"`
	CvssMetricV2  []CVSSMetric `json:"cvssMetricV2"`
}

// CVSSMetric v2 的严重性在 cvssData 外层，v3/v4 在 cvssData 内
type CVSSMetric struct {
	Source       string   `json:"source"`
	Type         string   `json:"type"`
	CvssData     CVSSData `json:"cvssData"`
	BaseSeverity string   `json:"baseSeverity"`
}

type CVSSData struct {
	Version      string   `json:"version"`
	VectorString string   `json:"vectorString"`
	BaseScore    *float64 `json:"baseScore"`
	BaseSeverity string   `json:"baseSeverity"`
}

type NVDReference struct {
	URL    string   `json:"url"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

// ParseNVDResponse 解析NVD响应体
// 单条格式错误的条目会被跳过，不影响其余条目
func ParseNVDResponse(body []byte, logger *utils.Logger) ([]model.NVDResult, error) {
	var resp NVDResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: 解析JSON失败: %v", common.ErrParse, err)
	}
	if resp.Vulnerabilities == nil {
		return nil, fmt.Errorf("%w: 响应缺少 vulnerabilities 字段", common.ErrParse)
	}

	results := make([]model.NVDResult, 0, len(*resp.Vulnerabilities))
	for i, raw := range *resp.Vulnerabilities {
		var vuln NVDVulnerability
		if err := json.Unmarshal(raw, &vuln); err != nil {
			if logger != nil {
				logger.Warn("跳过第 %d 条漏洞: %v", i, err)
			}
			continue
		}
		if vuln.CVE.ID == "" {
			if logger != nil {
				logger.Warn("跳过第 %d 条漏洞: 缺少 id", i)
			}
			continue
		}
		results = append(results, ConvertNVDResult(vuln))
	}
	return results, nil
}

// ConvertNVDResult 将NVD条目转换为内部结构，缺失的指标保持为 nil
func ConvertNVDResult(vuln NVDVulnerability) model.NVDResult {
	cve := vuln.CVE
	result := model.NVDResult{
		CVEID:        cve.ID,
		Description:  pickDescription(cve.Descriptions),
		Published:    cve.Published,
		LastModified: cve.LastModified,
		VulnStatus:   cve.VulnStatus,
	}

	result.BaseScore, result.BaseSeverity = pickMetric(cve.Metrics)

	for _, ref := range cve.References {
		if ref.URL != "" {
			u := ref.URL
			result.OEMURL = &u
			break
		}
	}

	return result
}

// 优先英文描述，否则取第一条
func pickDescription(descs []LangValue) string {
	for _, d := range descs {
		if d.Lang == "en" {
			return strings.TrimSpace(d.Value)
		}
	}
	if len(descs) > 0 {
		return strings.TrimSpace(descs[0].Value)
	}
	return ""
}

// pickMetric 按 v4.0 -> v3.1 -> v3.0 -> v2 的顺序取第一条可用度量
func pickMetric(m NVDMetrics) (*float64, *string) {
	groups := []struct {
		metrics []CVSSMetric
		v2      bool
	}{
		{m.CvssMetricV40, false},
		{m.CvssMetricV31, false},
		{m.CvssMetricV30, false},
		{m.CvssMetricV2, true},
	}
	for _, g := range groups {
		if len(g.metrics) == 0 {
			continue
		}
		metric := g.metrics[0]

		score := metric.CvssData.BaseScore
		if score == nil {
			if s, ok := ScoreFromVector(metric.CvssData.VectorString); ok {
				score = &s
			}
		}

		severity := metric.CvssData.BaseSeverity
		if severity == "" {
			severity = metric.BaseSeverity
		}
		if severity == "" && score != nil {
			if g.v2 {
				severity = SeverityFromV2Score(*score)
			} else {
				severity = SeverityFromScore(*score)
			}
		}

		var sev *string
		if severity != "" {
			sev = &severity
		}
		if score == nil && sev == nil {
			continue
		}
		return score, sev
	}
	return nil, nil
}

// ScoreFromVector 根据CVSS向量计算基础分
func ScoreFromVector(vector string) (float64, bool) {
	switch {
	case strings.HasPrefix(vector, "CVSS:3.1/"):
		if c, err := gocvss31.ParseVector(vector); err == nil {
			return c.BaseScore(), true
		}
	case strings.HasPrefix(vector, "CVSS:3.0/"):
		if c, err := gocvss30.ParseVector(vector); err == nil {
			return c.BaseScore(), true
		}
	case strings.HasPrefix(vector, "CVSS:4.0/"):
		if c, err := gocvss40.ParseVector(vector); err == nil {
			return c.Score(), true
		}
	}
	return 0, false
}

// SeverityFromScore CVSS v3 定性等级
func SeverityFromScore(score float64) string {
	switch {
	case score >= 9.0:
		return "CRITICAL"
	case score >= 7.0:
		return "HIGH"
	case score >= 4.0:
		return "MEDIUM"
	case score > 0:
		return "LOW"
	default:
		return "NONE"
	}
}

// SeverityFromV2Score CVSS v2 只有 LOW/MEDIUM/HIGH 三级
func SeverityFromV2Score(score float64) string {
	switch {
	case score >= 7.0:
		return "HIGH"
	case score >= 4.0:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// ToAdvisory 将NVD结果映射为统一的公告记录
func ToAdvisory(productName string, r model.NVDResult) model.AdvisoryRecord {
	rec := model.AdvisoryRecord{
		ProductName: productName,
		CVEID:       r.CVEID,
		Description: r.Description,
		Published:   r.Published,
		LastUpdated: r.LastModified,
		Link:        fmt.Sprintf("https://nvd.nist.gov/vuln/detail/%s", r.CVEID),
	}
	if r.BaseSeverity != nil {
		rec.Severity = *r.BaseSeverity
	}
	if r.OEMURL != nil {
		rec.Link = *r.OEMURL
	}
	return rec
}
