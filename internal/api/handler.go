// Package api 提供注册、扫描和报告导出的HTTP接口。
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
	"CyberAlerter/internal/payload"
	"CyberAlerter/internal/utils"
	"CyberAlerter/internal/watchlist"
)

type Registrar interface {
	RegisterSubmission(ctx context.Context, p model.RegistrationPayload) (watchlist.ProductStats, error)
}

type Scanner interface {
	RunScanCycle(ctx context.Context, userIDs []string) (*model.CycleReport, error)
}

type Reporter interface {
	Build(ctx context.Context, userID string) ([]model.ReportPayload, error)
}

type Handler struct {
	store   Registrar
	scanner Scanner
	reports Reporter
	logger  *utils.Logger
}

func NewHandler(store Registrar, scanner Scanner, reports Reporter) *Handler {
	return &Handler{
		store:   store,
		scanner: scanner,
		reports: reports,
		logger:  utils.NewLogger("api"),
	}
}

type registrationResp struct {
	UserID   string                 `json:"userId"`
	Vendors  int                    `json:"vendors"`
	Products watchlist.ProductStats `json:"products"`
	Warning  string                 `json:"warning,omitempty"`
}

type scanReq struct {
	UserIDs []string `json:"userIds"`
}

// RegisterRaw 接收注册文本，邮箱来自查询参数
func (h *Handler) RegisterRaw(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	sub, err := payload.Normalize(string(body))
	if err != nil {
		return h.fail(c, err)
	}
	return h.register(c, payload.ToRegistration(sub, strings.TrimSpace(c.QueryParam("email"))))
}

// RegisterCanonical 接收规范JSON载荷
func (h *Handler) RegisterCanonical(c echo.Context) error {
	var req model.RegistrationPayload
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.register(c, req)
}

func (h *Handler) register(c echo.Context, p model.RegistrationPayload) error {
	stats, err := h.store.RegisterSubmission(c.Request().Context(), p)
	resp := registrationResp{
		UserID:   p.UserID,
		Vendors:  len(p.ScanData),
		Products: stats,
	}
	if err != nil {
		// 部分产品保存失败时仍返回已保存的统计
		if !errors.Is(err, common.ErrPersistence) || stats.Inserted+stats.Updated+stats.Unchanged == 0 {
			return h.fail(c, err)
		}
		h.logger.Warn("用户 %s 注册部分失败: %v", p.UserID, err)
		resp.Warning = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// Scan 执行一次扫描周期，厂商级失败包含在返回的报告中
func (h *Handler) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.UserIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userIds required"})
	}

	report, err := h.scanner.RunScanCycle(c.Request().Context(), req.UserIDs)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) Report(c echo.Context) error {
	payloads, err := h.reports.Build(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, payloads)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrMalformedPayload), errors.Is(err, common.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, common.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	default:
		h.logger.Error("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}
