package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
)

const vulnerabilityColumns = "cve_id, vendor, product_name, description, severity, published, last_updated, link, added_at"

// UpsertVulnerability 以 cve_id 为键插入或覆盖漏洞记录，added_at 只在首次插入时写入
func (s *Store) UpsertVulnerability(ctx context.Context, v model.Vulnerability) error {
	if strings.TrimSpace(v.CVEID) == "" {
		return fmt.Errorf("%w: cve_id 不能为空", common.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vulnerabilities (`+vulnerabilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cve_id) DO UPDATE SET
			vendor = excluded.vendor,
			product_name = excluded.product_name,
			description = excluded.description,
			severity = excluded.severity,
			published = excluded.published,
			last_updated = excluded.last_updated,
			link = excluded.link`,
		v.CVEID, v.Vendor, v.ProductName, v.Description, v.Severity,
		v.Published, v.LastUpdated, v.Link, s.now())
	if err != nil {
		return fmt.Errorf("%w: 保存漏洞 %s 失败: %v", common.ErrPersistence, v.CVEID, err)
	}
	return nil
}

// UpsertVulnerabilities 逐条保存，返回成功和失败条数
func (s *Store) UpsertVulnerabilities(ctx context.Context, vulns []model.Vulnerability) (stored, failed int) {
	for _, v := range vulns {
		if err := s.UpsertVulnerability(ctx, v); err != nil {
			s.logger.Error("%v", err)
			failed++
			continue
		}
		stored++
	}
	return stored, failed
}

// GetVulnerability 按CVE ID读取漏洞
func (s *Store) GetVulnerability(ctx context.Context, cveID string) (*model.Vulnerability, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+vulnerabilityColumns+" FROM vulnerabilities WHERE cve_id = ?", cveID)

	v, err := scanVulnerability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 漏洞 %s", common.ErrNotFound, cveID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: 查询漏洞失败: %v", common.ErrPersistence, err)
	}
	return v, nil
}

// ProductVulnerabilities 某个用户产品匹配到的漏洞
type ProductVulnerabilities struct {
	ProductName     string
	Vulnerabilities []model.Vulnerability
}

// VulnerabilitiesForUser 按厂商相同、产品名互相包含的规则，关联用户产品与已保存的漏洞
func (s *Store) VulnerabilitiesForUser(ctx context.Context, userID string) ([]ProductVulnerabilities, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.product_name, v.cve_id, v.vendor, v.product_name, v.description, v.severity,
			v.published, v.last_updated, v.link, v.added_at
		FROM user_products p
		JOIN vulnerabilities v ON LOWER(v.vendor) = LOWER(p.vendor)
			AND v.product_name <> ''
			AND (instr(LOWER(v.product_name), LOWER(p.product_name)) > 0
				OR instr(LOWER(p.product_name), LOWER(v.product_name)) > 0)
		WHERE p.user_id = ?
		ORDER BY p.added_at, p.product_name, v.cve_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询用户漏洞失败: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	var out []ProductVulnerabilities
	index := make(map[string]int)
	for rows.Next() {
		var (
			product string
			v       model.Vulnerability
		)
		if err := rows.Scan(&product, &v.CVEID, &v.Vendor, &v.ProductName, &v.Description,
			&v.Severity, &v.Published, &v.LastUpdated, &v.Link, &v.AddedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}

		i, ok := index[product]
		if !ok {
			i = len(out)
			index[product] = i
			out = append(out, ProductVulnerabilities{ProductName: product})
		}
		out[i].Vulnerabilities = append(out[i].Vulnerabilities, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return out, nil
}

func scanVulnerability(row *sql.Row) (*model.Vulnerability, error) {
	var v model.Vulnerability
	if err := row.Scan(&v.CVEID, &v.Vendor, &v.ProductName, &v.Description, &v.Severity,
		&v.Published, &v.LastUpdated, &v.Link, &v.AddedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
