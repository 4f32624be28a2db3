package utils

import (
	"regexp"
	"strings"
)

// VersionParser 从产品名中提取版本号
type VersionParser struct {
	patterns []*regexp.Regexp
}

func NewVersionParser() *VersionParser {
	return &VersionParser{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bversion\s*[:]?\s*(\d+(?:\.\d+)*)`), // version 1.2 或 version:1.2
			regexp.MustCompile(`(?i)\bv(\d+(?:\.\d+)+)\b`),               // v1.2
			regexp.MustCompile(`\b(\d+(?:\.\d+)+)\b`),                    // 1.2.3 或 1.2
		},
	}
}

// ExtractVersion 返回产品名中第一个版本号，没有时 ok 为 false
func (vp *VersionParser) ExtractVersion(productName string) (string, bool) {
	for _, re := range vp.patterns {
		if m := re.FindStringSubmatch(productName); m != nil {
			return vp.NormalizeVersion(m[1]), true
		}
	}
	return "", false
}

// NormalizeVersion 标准化版本号
func (vp *VersionParser) NormalizeVersion(version string) string {
	// 移除多余的空格和前缀
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	version = strings.TrimPrefix(version, "V")
	version = strings.TrimSpace(version)
	return strings.Trim(version, ".")
}
