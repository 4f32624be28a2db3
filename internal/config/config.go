// Package config 按 默认值 -> .env 文件 -> 环境变量 的顺序加载配置，命令行参数最后覆盖。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"CyberAlerter/internal/advisory"
	"CyberAlerter/internal/cvedb"
)

type Config struct {
	DatabasePath string

	NVDBaseURL        string
	NVDAPIKey         string
	BulletinURL       string
	TableURL          string
	ChromeHeadless    bool
	AdapterTimeout    time.Duration
	HTTPTimeout       time.Duration
	DetailConcurrency int
	NVDFallback       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AMQPURL     string
	ReportQueue string

	ListenAddr string
	Debug      bool
	LogFormat  string
}

func Default() *Config {
	return &Config{
		DatabasePath:      "database/watchlist.db",
		NVDBaseURL:        cvedb.DefaultBaseURL,
		BulletinURL:       advisory.DefaultBulletinURL,
		TableURL:          advisory.DefaultTableURL,
		ChromeHeadless:    true,
		AdapterTimeout:    5 * time.Minute,
		HTTPTimeout:       60 * time.Second,
		DetailConcurrency: 4,
		CacheTTL:          30 * time.Minute,
		ReportQueue:       "vulnerability.report",
		ListenAddr:        ":8080",
		LogFormat:         "text",
	}
}

// Load envFile 不存在时忽略
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取 %s 失败: %v", envFile, err)
		}
	}

	cfg := Default()
	var err error

	cfg.DatabasePath = getenv("DATABASE_PATH", cfg.DatabasePath)
	cfg.NVDBaseURL = getenv("NVD_BASE_URL", cfg.NVDBaseURL)
	cfg.NVDAPIKey = getenv("NVD_API_KEY", "")
	cfg.BulletinURL = getenv("NVIDIA_BULLETIN_URL", cfg.BulletinURL)
	cfg.TableURL = getenv("SCHNEIDER_NOTIFICATIONS_URL", cfg.TableURL)
	cfg.RedisAddr = getenv("REDIS_ADDR", "")
	cfg.RedisPassword = getenv("REDIS_PASSWORD", "")
	cfg.AMQPURL = getenv("AMQP_URL", "")
	cfg.ReportQueue = getenv("REPORT_QUEUE", cfg.ReportQueue)
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)

	if cfg.ChromeHeadless, err = getbool("CHROME_HEADLESS", cfg.ChromeHeadless); err != nil {
		return nil, err
	}
	if cfg.NVDFallback, err = getbool("NVD_FALLBACK", false); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getbool("DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = getduration("ADAPTER_TIMEOUT", cfg.AdapterTimeout); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getduration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getduration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.DetailConcurrency, err = getint("DETAIL_CONCURRENCY", cfg.DetailConcurrency); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AdvisoryOptions 适配器注册表的配置，cache 可为 nil
func (c *Config) AdvisoryOptions(cache *advisory.Cache) advisory.Options {
	return advisory.Options{
		NVDBaseURL:        c.NVDBaseURL,
		NVDAPIKey:         c.NVDAPIKey,
		BulletinURL:       c.BulletinURL,
		TableURL:          c.TableURL,
		Headless:          c.ChromeHeadless,
		HTTPTimeout:       c.HTTPTimeout,
		RenderTimeout:     c.AdapterTimeout,
		DetailConcurrency: c.DetailConcurrency,
		Cache:             cache,
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) (bool, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s 不是有效的布尔值: %q", key, v)
	}
	return b, nil
}

func getint(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s 不是有效的整数: %q", key, v)
	}
	return n, nil
}

// getduration 接受 time.ParseDuration 格式或秒数
func getduration(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s 不是有效的时长: %q", key, v)
	}
	return d, nil
}
