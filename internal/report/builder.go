// Package report 把监控列表中的漏洞整理成邮件/报告服务需要的载荷，并通过消息队列投递。
package report

import (
	"context"
	"fmt"

	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
	"CyberAlerter/internal/watchlist"
)

const notAvailable = "N/A"

// Source 报告所需的查询
type Source interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	VulnerabilitiesForUser(ctx context.Context, userID string) ([]watchlist.ProductVulnerabilities, error)
}

type Builder struct {
	source   Source
	versions *utils.VersionParser
	logger   *utils.Logger
}

func NewBuilder(source Source) *Builder {
	return &Builder{
		source:   source,
		versions: utils.NewVersionParser(),
		logger:   utils.NewLogger("report"),
	}
}

// Build 每个匹配到漏洞的产品生成一份载荷
func (b *Builder) Build(ctx context.Context, userID string) ([]model.ReportPayload, error) {
	user, err := b.source.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	products, err := b.source.VulnerabilitiesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户漏洞失败: %w", err)
	}

	payloads := make([]model.ReportPayload, 0, len(products))
	for _, p := range products {
		version, ok := b.versions.ExtractVersion(p.ProductName)
		if !ok {
			version = notAvailable
		}

		details := model.ScanDetails{
			ProductName:    p.ProductName,
			ProductVersion: version,
			Results:        make([]model.ReportResult, 0, len(p.Vulnerabilities)),
		}
		for _, v := range p.Vulnerabilities {
			details.Results = append(details.Results, toResult(v))
		}

		payloads = append(payloads, model.ReportPayload{
			UserEmail:   user.Email,
			ScanDetails: details,
		})
	}

	b.logger.Info("用户 %s 报告: %d 个产品", userID, len(payloads))
	return payloads, nil
}

func toResult(v model.Vulnerability) model.ReportResult {
	r := model.ReportResult{
		CVEID:                    v.CVEID,
		BaseSeverity:             orNA(v.Severity),
		VulnerabilityDescription: orNA(v.Description),
		Mitigation:               notAvailable,
		PublishedDate:            orNA(v.Published),
		LastModified:             orNA(v.LastUpdated),
	}
	if v.Link != "" {
		link := v.Link
		r.OEMURL = &link
	}
	return r
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
