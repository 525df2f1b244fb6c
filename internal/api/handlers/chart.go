package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chart-proxy/internal/services"
	"github.com/chart-proxy/pkg/logger"
	"github.com/chart-proxy/pkg/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ChartProvider serves chart envelopes
type ChartProvider interface {
	GetChart(ctx context.Context, symbol string, res models.Resolution, from, to string) (*models.ChartResponse, error)
}

// MarketSearcher serves raw instrument search results
type MarketSearcher interface {
	Search(ctx context.Context, term string) ([]byte, error)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// ChartHandler handles the chart and search endpoints
type ChartHandler struct {
	charts            ChartProvider
	search            MarketSearcher
	defaultResolution models.Resolution
	logger            *logrus.Logger
}

// NewChartHandler creates a new chart handler
func NewChartHandler(charts ChartProvider, search MarketSearcher, defaultResolution models.Resolution, logger *logrus.Logger) *ChartHandler {
	if defaultResolution == "" {
		defaultResolution = models.ResolutionDay
	}
	return &ChartHandler{
		charts:            charts,
		search:            search,
		defaultResolution: defaultResolution,
		logger:            logger,
	}
}

// RegisterRoutes registers the chart and search routes
func (h *ChartHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.GetChart).Methods(http.MethodGet)
	router.HandleFunc("/chart", h.GetChart).Methods(http.MethodGet)
	router.HandleFunc("/search", h.Search).Methods(http.MethodGet)
}

// GetChart serves price history for ?epic= or ?symbol=
func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.TrimSpace(q.Get("epic"))
	if symbol == "" {
		symbol = strings.TrimSpace(q.Get("symbol"))
	}
	if symbol == "" {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing epic/symbol parameter"})
		return
	}

	res := models.ParseResolution(q.Get("resolution"), h.defaultResolution)

	chart, err := h.charts.GetChart(r.Context(), symbol, res, q.Get("from"), q.Get("to"))
	if err != nil {
		logger.FromContext(r.Context(), h.logger).WithError(err).WithFields(logrus.Fields{
			"component":  "chart-api",
			"symbol":     symbol,
			"resolution": res,
		}).Error("Chart request failed")
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chart)
}

// Search proxies ?term= to the upstream instrument search
func (h *ChartHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")

	body, err := h.search.Search(r.Context(), term)
	if err != nil {
		logger.FromContext(r.Context(), h.logger).WithError(err).WithFields(logrus.Fields{
			"component": "chart-api",
			"term":      term,
		}).Error("Search request failed")
		h.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeFailure renders err as a 500 with the fallback trace when there is one
func (h *ChartHandler) writeFailure(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if trace := services.TraceOf(err); trace != nil {
		resp.Details = trace
	} else if inner := unwrapAll(err); inner != err {
		resp.Details = inner.Error()
	}
	h.writeJSON(w, http.StatusInternalServerError, resp)
}

func (h *ChartHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// unwrapAll returns the innermost cause of err
func unwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
