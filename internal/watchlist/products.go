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

// ProductStats 一次产品注册的统计
type ProductStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

type upsertResult int

const (
	productInserted upsertResult = iota
	productUpdated
	productUnchanged
)

// RegisterProducts 对每个产品执行增量更新。
// 单个产品失败只记录日志，其余产品继续处理。
func (s *Store) RegisterProducts(ctx context.Context, userID string, scanData []model.VendorProducts) (ProductStats, error) {
	var stats ProductStats
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return stats, fmt.Errorf("%w: 用户ID不能为空", common.ErrValidation)
	}

	for _, entry := range scanData {
		for _, product := range entry.Products {
			if strings.TrimSpace(product) == "" {
				s.logger.Warn("厂商 %s 下存在空产品名，已跳过", entry.Vendor)
				continue
			}

			result, err := s.upsertProduct(ctx, userID, entry.Vendor, entry.VendorWebsite, product)
			if err != nil {
				s.logger.Error("保存产品 %s 失败: %v", product, err)
				stats.Failed++
				continue
			}

			switch result {
			case productInserted:
				stats.Inserted++
			case productUpdated:
				stats.Updated++
			default:
				stats.Unchanged++
			}
		}
	}

	s.logger.Info("用户 %s 产品注册完成: 新增 %d, 更新 %d, 未变 %d, 失败 %d",
		userID, stats.Inserted, stats.Updated, stats.Unchanged, stats.Failed)

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%w: %d 个产品保存失败", common.ErrPersistence, stats.Failed)
	}
	return stats, nil
}

type columnChange struct {
	column string
	value  any
}

func (s *Store) upsertProduct(ctx context.Context, userID, vendor string, website *string, product string) (upsertResult, error) {
	id := model.ProductID(product, userID)
	result := productUnchanged

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		var (
			curUser    string
			curVendor  string
			curWebsite sql.NullString
			curName    string
		)
		err := tx.QueryRowContext(ctx,
			"SELECT user_id, vendor, vendor_website, product_name FROM user_products WHERE id = ?", id,
		).Scan(&curUser, &curVendor, &curWebsite, &curName)

		now := s.now()
		if errors.Is(err, sql.ErrNoRows) {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO user_products (id, user_id, vendor, vendor_website, product_name, added_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, userID, vendor, nullable(website), product, now, now)
			if err != nil {
				return err
			}
			result = productInserted
			return nil
		}
		if err != nil {
			return err
		}
		// 产品ID由 "<产品>_<用户>" 派生，不同用户可能撞到同一ID
		if curUser != userID {
			return fmt.Errorf("产品ID %s 已属于用户 %s", id, curUser)
		}

		var changes []columnChange
		if curVendor != vendor {
			changes = append(changes, columnChange{"vendor", vendor})
		}
		if !sameWebsite(curWebsite, website) {
			changes = append(changes, columnChange{"vendor_website", nullable(website)})
		}
		if curName != product {
			changes = append(changes, columnChange{"product_name", product})
		}
		if len(changes) == 0 {
			return nil
		}

		sets := make([]string, 0, len(changes)+1)
		args := make([]any, 0, len(changes)+2)
		for _, c := range changes {
			sets = append(sets, c.column+" = ?")
			args = append(args, c.value)
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, now, id, userID)

		if _, err := tx.ExecContext(ctx,
			"UPDATE user_products SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...); err != nil {
			return err
		}
		result = productUpdated
		return nil
	})
	if err != nil {
		return productUnchanged, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return result, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func sameWebsite(cur sql.NullString, next *string) bool {
	if !cur.Valid {
		return next == nil
	}
	return next != nil && *next == cur.String
}

// GetProduct 按产品ID读取
func (s *Store) GetProduct(ctx context.Context, id string) (*model.UserProduct, error) {
	var (
		p       model.UserProduct
		website sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, vendor, vendor_website, product_name, added_at, updated_at
		FROM user_products WHERE id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.Vendor, &website, &p.ProductName, &p.AddedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 产品 %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: 查询产品失败: %v", common.ErrPersistence, err)
	}
	if website.Valid {
		p.VendorWebsite = &website.String
	}
	return &p, nil
}

// CountProducts 返回已注册产品总数
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_products").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return n, nil
}

// ListProductsForUsers 一次查询取出多个用户的产品，按 用户 -> 厂商 -> 产品名 组织
func (s *Store) ListProductsForUsers(ctx context.Context, userIDs []string) (map[string]map[string][]string, error) {
	out := make(map[string]map[string][]string)
	if len(userIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, vendor, product_name FROM user_products
		WHERE user_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY user_id, vendor, added_at, product_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询用户产品失败: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, vendor, product string
		if err := rows.Scan(&userID, &vendor, &product); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if out[userID] == nil {
			out[userID] = make(map[string][]string)
		}
		out[userID][vendor] = append(out[userID][vendor], product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return out, nil
}
