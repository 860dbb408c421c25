package controller

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/service"
	"github.com/grand-thief-cash/valuetrack/internal/source"
)

type MarketController struct {
	*core.BaseComponent
	Svc *service.MarketSyncService `infra:"dep:market_sync_service"`
}

func NewMarketController() *MarketController {
	return &MarketController{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_MARKET, consts.COMPONENT_LOGGING),
	}
}

func (c *MarketController) Start(ctx context.Context) error { return c.BaseComponent.Start(ctx) }
func (c *MarketController) Stop(ctx context.Context) error  { return c.BaseComponent.Stop(ctx) }

// POST /api/v1/market/snapshot?force=true
func (c *MarketController) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := c.Svc.FetchMarketSnapshot(ctx, parseBoolParam(r, "force"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, source.ErrNoProvider) {
			status = http.StatusBadGateway
		}
		logging.Errorf(ctx, "snapshot failed: %+v", err)
		writeJSON(w, status, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: res})
}

// GET /api/v1/market/quotes
func (c *MarketController) ListQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parseLimitOffset(r)
	f := &model.MarketQuoteFilters{
		Date: r.URL.Query().Get("date"),
		Code: r.URL.Query().Get("code"),
		Name: r.URL.Query().Get("name"),
	}
	list, err := c.Svc.ListQuotes(ctx, f, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: list})
}

// GET /api/v1/market/quotes/count
func (c *MarketController) CountQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := &model.MarketQuoteFilters{
		Date: r.URL.Query().Get("date"),
		Code: r.URL.Query().Get("code"),
		Name: r.URL.Query().Get("name"),
	}
	cnt, err := c.Svc.CountQuotes(ctx, f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: map[string]any{"count": cnt}})
}

// GET /api/v1/market/quotes/{code}
func (c *MarketController) GetQuote(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()
	q, err := c.Svc.GetQuote(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: q})
}
