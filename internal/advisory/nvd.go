package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/cvedb"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

// NVDAdapter 按产品关键字查询NVD
type NVDAdapter struct {
	client *cvedb.CVEAPIClient
	logger *utils.Logger
}

func NewNVDAdapter(client *cvedb.CVEAPIClient) *NVDAdapter {
	return &NVDAdapter{
		client: client,
		logger: utils.NewLogger("nvd"),
	}
}

// FetchAdvisories 每个产品一次关键字查询。部分产品失败时返回其余结果，全部失败才返回错误。
func (a *NVDAdapter) FetchAdvisories(ctx context.Context, products []string) ([]model.AdvisoryRecord, error) {
	var (
		records []model.AdvisoryRecord
		errs    []error
		queried int
	)

	for _, product := range products {
		product = strings.TrimSpace(product)
		if product == "" {
			continue
		}
		queried++

		results, err := a.client.Search(ctx, cvedb.Query{Keyword: product})
		if err != nil {
			a.logger.Warn("查询产品 %s 失败: %v", product, err)
			errs = append(errs, err)
			continue
		}

		a.logger.Debug("产品 %s 找到 %d 个CVE", product, len(results))
		for _, r := range results {
			records = append(records, cvedb.ToAdvisory(product, r))
		}
	}

	if queried > 0 && len(errs) == queried {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

// FetchByCVE 按CVE编号精确查询
func (a *NVDAdapter) FetchByCVE(ctx context.Context, cveID string) (*model.AdvisoryRecord, error) {
	results, err := a.client.Search(ctx, cvedb.Query{CVEID: cveID})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, cveID)
	}
	rec := cvedb.ToAdvisory("", results[0])
	return &rec, nil
}

func (a *NVDAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
