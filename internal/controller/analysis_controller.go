package controller

import (
	"context"
	"net/http"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/service"
)

type AnalysisController struct {
	*core.BaseComponent
	Svc *service.AnalysisService `infra:"dep:analysis_service"`
}

func NewAnalysisController() *AnalysisController {
	return &AnalysisController{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_ANALYSIS, consts.COMPONENT_LOGGING),
	}
}

func (c *AnalysisController) Start(ctx context.Context) error { return c.BaseComponent.Start(ctx) }
func (c *AnalysisController) Stop(ctx context.Context) error  { return c.BaseComponent.Stop(ctx) }

// POST /api/v1/analysis/run
// Per-stock failures are counted inside the stats, not surfaced as an
// HTTP error; only a watchlist load failure aborts the run.
func (c *AnalysisController) RunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := c.Svc.AnalyzeAll(ctx)
	if err != nil {
		logging.Errorf(ctx, "batch analysis failed: %+v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: stats})
}

// POST /api/v1/analysis/run/{code}
func (c *AnalysisController) RunOne(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()
	res, err := c.Svc.AnalyzeOne(ctx, code)
	if err != nil {
		logging.Errorf(ctx, "analyze %s failed: %+v", code, err)
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: res})
}

// GET /api/v1/analysis/latest
func (c *AnalysisController) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parseLimitOffset(r)
	list, err := c.Svc.LatestResults(ctx, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: list})
}
