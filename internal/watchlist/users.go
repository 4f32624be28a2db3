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

// RegisterUser 插入或更新用户邮箱，刷新 updated_at
func (s *Store) RegisterUser(ctx context.Context, userID, email string) error {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(email)
	if userID == "" || email == "" {
		return fmt.Errorf("%w: 用户ID和邮箱不能为空", common.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at`,
		userID, email, s.now())
	if err != nil {
		return fmt.Errorf("%w: 保存用户 %s 失败: %v", common.ErrPersistence, userID, err)
	}

	s.logger.Debug("用户 %s 已更新", userID)
	return nil
}

// GetUser 按ID读取用户
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, updated_at FROM users WHERE id = ?", userID,
	).Scan(&u.ID, &u.Email, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 用户 %s", common.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: 查询用户失败: %v", common.ErrPersistence, err)
	}
	return &u, nil
}

// RegisterSubmission 保存用户及其全部产品
func (s *Store) RegisterSubmission(ctx context.Context, payload model.RegistrationPayload) (ProductStats, error) {
	if strings.TrimSpace(payload.UserID) == "" || strings.TrimSpace(payload.Email) == "" {
		return ProductStats{}, fmt.Errorf("%w: 注册载荷缺少 userId 或 email", common.ErrValidation)
	}

	if err := s.RegisterUser(ctx, payload.UserID, payload.Email); err != nil {
		return ProductStats{}, err
	}

	return s.RegisterProducts(ctx, payload.UserID, payload.ScanData)
}
