// Package watchlist 保存用户、用户产品和漏洞三类记录，并执行增量更新。
package watchlist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/utils"
	"CyberAlerter/internal/watchlist/migrations"
)

type Store struct {
	db     *sql.DB
	path   string
	logger *utils.Logger
	now    func() time.Time
}

// Open 打开（必要时创建）sqlite数据库并执行迁移
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		// 确保目录存在
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %v", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %v", err)
	}
	// 单连接串行写入，同一键的读改写不会交错
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库迁移失败: %v", err)
	}

	store := newStore(db)
	store.path = dbPath
	return store, nil
}

func newStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: utils.NewLogger("watchlist"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Clear 清空所有集合
func (s *Store) Clear(ctx context.Context) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		for _, table := range []string{"users", "user_products", "vulnerabilities", "scan_runs"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("%w: 清空 %s 失败: %v", common.ErrPersistence, table, err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
