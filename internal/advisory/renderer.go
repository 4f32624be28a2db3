package advisory

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"CyberAlerter/internal/common"
)

// Renderer 执行页面脚本后返回最终DOM
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
	Close() error
}

// ChromeRenderer 基于 chromedp 的无头浏览器，浏览器进程在首次渲染时启动，Close 时退出
type ChromeRenderer struct {
	timeout       time.Duration
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func NewChromeRenderer(headless bool, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	return &ChromeRenderer{
		timeout:       timeout,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, url, waitSelector string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// 调用方取消时同时关闭标签页
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: 渲染 %s 失败: %v", common.ErrAdapterFetch, url, err)
	}
	return html, nil
}

func (r *ChromeRenderer) Close() error {
	r.cancelBrowser()
	r.cancelAlloc()
	return nil
}
