package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
)

// ScanRun 扫描周期历史记录
type ScanRun struct {
	ID         string                `json:"id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	UserIDs    []string              `json:"user_ids"`
	Succeeded  int                   `json:"succeeded"`
	Failed     int                   `json:"failed"`
	Skipped    int                   `json:"skipped"`
	Vendors    []model.VendorOutcome `json:"vendors,omitempty"`
}

// RecordScanRun 保存一次扫描周期的汇总
func (s *Store) RecordScanRun(ctx context.Context, report *model.CycleReport) error {
	detail, err := json.Marshal(report.Vendors)
	if err != nil {
		return fmt.Errorf("序列化扫描结果失败: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, started_at, finished_at, user_ids, succeeded, failed, skipped, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.StartedAt, report.FinishedAt, strings.Join(report.UserIDs, ","),
		report.Count(model.VendorSucceeded), report.Count(model.VendorFailed),
		report.Count(model.VendorSkipped), string(detail))
	if err != nil {
		return fmt.Errorf("%w: 保存扫描记录失败: %v", common.ErrPersistence, err)
	}
	return nil
}

// ScanHistory 按时间倒序返回最近的扫描记录
func (s *Store) ScanHistory(ctx context.Context, limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, user_ids, succeeded, failed, skipped, detail
		FROM scan_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询扫描记录失败: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		var (
			run     ScanRun
			userIDs string
			detail  string
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &userIDs,
			&run.Succeeded, &run.Failed, &run.Skipped, &detail); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if userIDs != "" {
			run.UserIDs = strings.Split(userIDs, ",")
		}
		if detail != "" {
			if err := json.Unmarshal([]byte(detail), &run.Vendors); err != nil {
				s.logger.Warn("扫描记录 %s 明细解析失败: %v", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
