package model

// ReportPayload 交给邮件/报告服务的载荷
type ReportPayload struct {
	UserEmail   string      `json:"userEmail"`
	ScanDetails ScanDetails `json:"scanDetails"`
}

type ScanDetails struct {
	ProductName    string         `json:"productName"`
	ProductVersion string         `json:"productVersion"`
	Results        []ReportResult `json:"results"`
}

type ReportResult struct {
	CVEID                    string  `json:"cve_id"`
	BaseSeverity             string  `json:"baseSeverity"`
	VulnerabilityDescription string  `json:"vulnerabilityDescription"`
	Mitigation               string  `json:"Mitigation"`
	PublishedDate            string  `json:"published_date"`
	LastModified             string  `json:"last_modified"`
	OEMURL                   *string `json:"oemUrl"`
}
