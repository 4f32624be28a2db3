package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"CyberAlerter/internal/advisory"
	"CyberAlerter/internal/api"
	"CyberAlerter/internal/config"
	"CyberAlerter/internal/cvedb"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/payload"
	"CyberAlerter/internal/report"
	"CyberAlerter/internal/scanner"
	"CyberAlerter/internal/utils"
	"CyberAlerter/internal/watchlist"
	"CyberAlerter/pkg/cli"
)

func main() {
	// 解析命令行参数
	parser := cli.NewParser()
	if err := parser.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "使用 -help 查看完整帮助信息\n")
		os.Exit(1)
	}
	options := parser.Options

	cfg, err := config.Load(options.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
	// 命令行参数覆盖环境配置
	if options.DatabasePath != "" {
		cfg.DatabasePath = options.DatabasePath
	}
	if options.NVDFallback {
		cfg.NVDFallback = true
	}
	if options.Verbose {
		cfg.Debug = true
	}
	utils.SetFormat(cfg.LogFormat)
	utils.SetDebug(cfg.Debug)

	logger := utils.NewLogger("main")
	logger.Info("启动 CyberAlerter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, options model.CLIOptions) error {
	logger := utils.NewLogger("main")

	store, err := watchlist.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer store.Close()

	rdb := newRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
		logger.Info("已启用Redis缓存: %s", cfg.RedisAddr)
	}

	registry := advisory.DefaultRegistry(cfg.AdvisoryOptions(advisory.NewCache(rdb, cfg.CacheTTL)))
	orchestrator := scanner.NewOrchestrator(store, registry,
		scanner.WithTimeout(cfg.AdapterTimeout),
		scanner.WithNVDFallback(cfg.NVDFallback),
	)
	builder := report.NewBuilder(store)
	formatter := cli.NewOutputFormatter(options.OutputFormat)

	if options.Reset {
		logger.Warn("清空数据库 %s", cfg.DatabasePath)
		if err := store.Clear(ctx); err != nil {
			return err
		}
	}

	if options.RegisterFile != "" {
		if err := register(ctx, store, formatter, options); err != nil {
			return err
		}
	}

	if options.CVEID != "" {
		nvd := advisory.NewNVDAdapter(cvedb.NewCVEAPIClient(cfg.NVDAPIKey, cvedb.WithBaseURL(cfg.NVDBaseURL)))
		rec, err := nvd.FetchByCVE(ctx, options.CVEID)
		nvd.Close()
		if err != nil {
			return fmt.Errorf("查询 %s 失败: %w", options.CVEID, err)
		}
		if err := formatter.PrintAdvisory(rec, options.OutputFile); err != nil {
			return err
		}
	}

	if len(options.ScanUsers) > 0 {
		cycle, err := orchestrator.RunScanCycle(ctx, options.ScanUsers)
		if err != nil {
			return err
		}
		if err := formatter.PrintCycle(cycle, options.OutputFile); err != nil {
			return err
		}
	}

	if options.History > 0 {
		runs, err := store.ScanHistory(ctx, options.History)
		if err != nil {
			return err
		}
		if err := formatter.PrintHistory(runs, options.OutputFile); err != nil {
			return err
		}
	}

	if options.ReportUser != "" {
		payloads, err := builder.Build(ctx, options.ReportUser)
		if err != nil {
			return err
		}
		if err := formatter.PrintReports(payloads, options.OutputFile); err != nil {
			return err
		}
		if options.Publish {
			if err := publish(ctx, cfg, payloads); err != nil {
				return err
			}
		}
	}

	if options.Serve {
		return serve(ctx, cfg, api.NewHandler(store, orchestrator, builder))
	}
	return nil
}

func register(ctx context.Context, store *watchlist.Store, formatter *cli.OutputFormatter, options model.CLIOptions) error {
	var (
		raw []byte
		err error
	)
	if options.RegisterFile == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(options.RegisterFile)
	}
	if err != nil {
		return fmt.Errorf("读取注册文件失败: %w", err)
	}

	sub, err := payload.Normalize(string(raw))
	if err != nil {
		return err
	}
	reg := payload.ToRegistration(sub, options.Email)

	stats, err := store.RegisterSubmission(ctx, reg)
	if err != nil && stats.Inserted+stats.Updated+stats.Unchanged == 0 {
		return err
	}
	return formatter.PrintRegistration(reg.UserID, stats, options.OutputFile)
}

func publish(ctx context.Context, cfg *config.Config, payloads []model.ReportPayload) error {
	if cfg.AMQPURL == "" {
		return fmt.Errorf("未配置 AMQP_URL")
	}
	publisher, err := report.Dial(cfg.AMQPURL, cfg.ReportQueue)
	if err != nil {
		return err
	}
	defer publisher.Close()

	_, err = publisher.Publish(ctx, payloads)
	return err
}

func serve(ctx context.Context, cfg *config.Config, handler *api.Handler) error {
	logger := utils.NewLogger("http")
	e := api.NewRouter(handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP服务监听 %s", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("正在关闭HTTP服务")
	return e.Shutdown(shutdownCtx)
}

// newRedisClient 未配置地址或连接失败时返回 nil，缓存随之禁用
func newRedisClient(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		utils.NewLogger("main").Warn("Redis不可用，禁用缓存: %v", err)
		client.Close()
		return nil
	}
	return client
}
