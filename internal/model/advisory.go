package model

// AdvisoryRecord 各厂商适配器统一输出的公告记录
type AdvisoryRecord struct {
	ProductName string `json:"product_name"`
	CVEID       string `json:"cve_id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Published   string `json:"published,omitempty"`
	LastUpdated string `json:"last_updated"`
	Link        string `json:"link"`
}

// NVDResult 从NVD响应中解析出的单条CVE
// 评分、严重性和参考链接可能缺失，缺失时为 nil
type NVDResult struct {
	CVEID        string   `json:"cve_id"`
	Description  string   `json:"vulnerabilityDescription"`
	Published    string   `json:"published_date"`
	LastModified string   `json:"last_modified"`
	VulnStatus   string   `json:"vulnStatus"`
	BaseScore    *float64 `json:"baseScore"`
	BaseSeverity *string  `json:"baseSeverity"`
	OEMURL       *string  `json:"oemUrl"`
}
