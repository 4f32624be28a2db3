package model

import "time"

// VendorStatus 单个厂商在一次扫描周期中的结果
type VendorStatus string

const (
	VendorSucceeded VendorStatus = "succeeded"
	VendorFailed    VendorStatus = "failed"
	VendorSkipped   VendorStatus = "skipped"
)

// VendorOutcome 厂商处理结果
type VendorOutcome struct {
	Vendor     string        `json:"vendor"`
	Products   []string      `json:"products"`
	Status     VendorStatus  `json:"status"`
	Advisories int           `json:"advisories"`
	Stored     int           `json:"stored"`
	Failed     int           `json:"failed"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// CycleReport 一次扫描周期的汇总
type CycleReport struct {
	RunID      string          `json:"run_id"`
	UserIDs    []string        `json:"user_ids"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Vendors    []VendorOutcome `json:"vendors"`
}

// Count 统计指定状态的厂商数
func (r *CycleReport) Count(status VendorStatus) int {
	n := 0
	for _, v := range r.Vendors {
		if v.Status == status {
			n++
		}
	}
	return n
}

// Outcome 按厂商名查找结果
func (r *CycleReport) Outcome(vendor string) (VendorOutcome, bool) {
	for _, v := range r.Vendors {
		if v.Vendor == vendor {
			return v, true
		}
	}
	return VendorOutcome{}, false
}
