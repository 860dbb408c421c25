package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/valuetrack/application/components/http_server"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/controller"
)

// Unified route registration for valuetrack.
func init() {
	http_server.RegisterRoutes(func(r chi.Router, c *core.Container) error {
		marketComp, err := c.Resolve(bizConsts.COMP_CTRL_MARKET)
		if err != nil {
			return err
		}
		marketCtrl := marketComp.(*controller.MarketController)

		r.Route("/api/v1/market", func(r chi.Router) {
			r.Post("/snapshot", marketCtrl.Snapshot)
			r.Get("/quotes", marketCtrl.ListQuotes)
			r.Get("/quotes/count", marketCtrl.CountQuotes)
			r.Get("/quotes/{code}", func(w http.ResponseWriter, req *http.Request) {
				marketCtrl.GetQuote(w, req, chi.URLParam(req, "code"))
			})
		})

		analysisComp, err := c.Resolve(bizConsts.COMP_CTRL_ANALYSIS)
		if err != nil {
			return err
		}
		analysisCtrl := analysisComp.(*controller.AnalysisController)

		r.Route("/api/v1/analysis", func(r chi.Router) {
			r.Post("/run", analysisCtrl.RunBatch)
			r.Post("/run/{code}", func(w http.ResponseWriter, req *http.Request) {
				analysisCtrl.RunOne(w, req, chi.URLParam(req, "code"))
			})
			r.Get("/latest", analysisCtrl.Latest)
		})

		watchComp, err := c.Resolve(bizConsts.COMP_CTRL_WATCHLIST)
		if err != nil {
			return err
		}
		watchCtrl := watchComp.(*controller.WatchlistController)

		r.Route("/api/v1/watchlist", func(r chi.Router) {
			r.Get("/", watchCtrl.List)
			r.Put("/{code}", func(w http.ResponseWriter, req *http.Request) {
				watchCtrl.Upsert(w, req, chi.URLParam(req, "code"))
			})
			r.Delete("/{code}", func(w http.ResponseWriter, req *http.Request) {
				watchCtrl.Remove(w, req, chi.URLParam(req, "code"))
			})
		})

		return nil
	})
}
