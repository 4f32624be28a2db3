package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// User 注册用户
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserProduct 用户关注的产品，ID由产品名和用户ID派生
type UserProduct struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Vendor        string    `json:"vendor" db:"vendor"`
	VendorWebsite *string   `json:"vendor_website,omitempty" db:"vendor_website"`
	ProductName   string    `json:"product_name" db:"product_name"`
	AddedAt       time.Time `json:"added_at" db:"added_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Vulnerability 以 cve_id 为唯一键保存的漏洞记录
type Vulnerability struct {
	CVEID       string    `json:"cve_id" db:"cve_id"`
	Vendor      string    `json:"vendor" db:"vendor"`
	ProductName string    `json:"product_name" db:"product_name"`
	Description string    `json:"description" db:"description"`
	Severity    string    `json:"severity" db:"severity"`
	Published   string    `json:"published,omitempty" db:"published"`
	LastUpdated string    `json:"last_updated" db:"last_updated"`
	Link        string    `json:"link" db:"link"`
	AddedAt     time.Time `json:"added_at" db:"added_at"`
}

// ProductID 计算 (产品名, 用户ID) 的内容寻址ID
func ProductID(productName, userID string) string {
	sum := sha256.Sum256([]byte(productName + "_" + userID))
	return hex.EncodeToString(sum[:])
}

// VulnerabilityFromAdvisory 将厂商公告转换为待保存的漏洞记录
func VulnerabilityFromAdvisory(vendor string, rec AdvisoryRecord) Vulnerability {
	return Vulnerability{
		CVEID:       rec.CVEID,
		Vendor:      vendor,
		ProductName: rec.ProductName,
		Description: rec.Description,
		Severity:    rec.Severity,
		Published:   rec.Published,
		LastUpdated: rec.LastUpdated,
		Link:        rec.Link,
	}
}
