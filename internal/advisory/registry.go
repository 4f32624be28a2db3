package advisory

import (
	"net/http"
	"time"

	"CyberAlerter/internal/cvedb"
	"CyberAlerter/internal/utils"
)

// Options 默认注册表的配置
type Options struct {
	NVDBaseURL        string
	NVDAPIKey         string
	BulletinURL       string
	TableURL          string
	Headless          bool
	HTTPTimeout       time.Duration
	RenderTimeout     time.Duration
	DetailConcurrency int
	Cache             *Cache
}

// DefaultRegistry 注册 NVIDIA、Schneider Electric 和 NVD
func DefaultRegistry(opts Options) *Registry {
	reg := NewRegistry()
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 60 * time.Second
	}

	// NVD 限速在所有实例间共享
	limiter := cvedb.DefaultLimiter(opts.NVDAPIKey)

	nvd := func() (Adapter, error) {
		client := cvedb.NewCVEAPIClient(opts.NVDAPIKey,
			cvedb.WithBaseURL(opts.NVDBaseURL),
			cvedb.WithHTTPClient(&http.Client{
				Timeout:   opts.HTTPTimeout,
				Transport: http.DefaultTransport.(*http.Transport).Clone(),
			}),
			cvedb.WithLimiter(limiter),
		)
		return NewNVDAdapter(client), nil
	}

	bulletin := func() (Adapter, error) {
		session := NewSession(opts.HTTPTimeout, opts.Cache, utils.NewLogger("bulletin-session"))
		return NewBulletinAdapter(session, opts.BulletinURL, "", opts.DetailConcurrency)
	}

	table := func() (Adapter, error) {
		return NewTableAdapter(NewChromeRenderer(opts.Headless, opts.RenderTimeout), opts.TableURL, SchneiderLayout), nil
	}

	reg.Register("NVD", nvd)
	reg.Register("NVIDIA", bulletin)
	reg.Register("Schneider Electric", table)
	reg.Register("Schneider", table)
	return reg
}
