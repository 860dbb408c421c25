package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/service"
)

type WatchlistController struct {
	*core.BaseComponent
	Svc *service.WatchlistService `infra:"dep:watchlist_service"`
}

func NewWatchlistController() *WatchlistController {
	return &WatchlistController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_WATCHLIST)}
}

func (c *WatchlistController) Start(ctx context.Context) error { return c.BaseComponent.Start(ctx) }
func (c *WatchlistController) Stop(ctx context.Context) error  { return c.BaseComponent.Stop(ctx) }

// GET /api/v1/watchlist
func (c *WatchlistController) List(w http.ResponseWriter, r *http.Request) {
	list, err := c.Svc.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: list})
}

// PUT /api/v1/watchlist/{code}
func (c *WatchlistController) Upsert(w http.ResponseWriter, r *http.Request, code string) {
	var req model.WatchEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json"})
		return
	}
	// path param wins
	req.Code = code
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "code required"})
		return
	}
	if err := c.Svc.Upsert(r.Context(), &req); err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: "ok"})
}

// DELETE /api/v1/watchlist/{code}
func (c *WatchlistController) Remove(w http.ResponseWriter, r *http.Request, code string) {
	affected, err := c.Svc.Remove(r.Context(), code)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	if affected == 0 {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse[any]{Data: map[string]any{"rows": affected}})
}
