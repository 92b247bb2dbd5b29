package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/damon-houk/rate-sync-client/internal/application/service"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ConnectivityState is the connectivity view the handler reports
type ConnectivityState interface {
	Online() bool
	ChangedAt() time.Time
}

// RatesHandler exposes the rate board and lets callers drive the scheduler
type RatesHandler struct {
	board        *service.RateBoard
	scheduler    *service.RefreshScheduler
	syncer       *service.RateSyncService
	connectivity ConnectivityState
	logger       logger.Logger
}

// NewRatesHandler creates a new rates handler. A nil connectivity source reports online.
func NewRatesHandler(board *service.RateBoard, scheduler *service.RefreshScheduler, syncer *service.RateSyncService, connectivity ConnectivityState, log logger.Logger) *RatesHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RatesHandler{
		board:        board,
		scheduler:    scheduler,
		syncer:       syncer,
		connectivity: connectivity,
		logger:       log,
	}
}

// GetRates returns the displayed rates, change indicators and sync state
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	resp := RatesResponse{
		BoardView:  h.board.View(),
		ActiveBase: h.scheduler.Base(),
		Fetching:   h.syncer.IsFetching(),
		Online:     h.online(),
		Scheduler:  h.scheduler.State().String(),
	}
	if base, startedAt, ok := h.syncer.ActiveSession(); ok {
		resp.Session = &SessionSummary{Base: base, StartedAt: startedAt}
	}

	sendJSON(w, h.logger, http.StatusOK, resp)
}

// Refresh requests an immediate sync of the active base currency
func (h *RatesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.scheduler.RequestRefresh(r.Context()); err != nil {
		sendErrorResponse(w, h.logger, "Refresh not scheduled",
			"The request ended before the refresh could be scheduled", http.StatusServiceUnavailable, requestID)
		return
	}

	h.logger.Info("Manual refresh requested", map[string]interface{}{
		"request_id": requestID,
		"base":       h.scheduler.Base(),
	})
	sendJSON(w, h.logger, http.StatusAccepted, AcceptedResponse{Status: "accepted", Base: h.scheduler.Base()})
}

// SetBase switches the active base currency
func (h *RatesHandler) SetBase(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req SetBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request body",
			"The request body could not be parsed as valid JSON", http.StatusBadRequest, requestID)
		return
	}

	base := strings.ToUpper(strings.TrimSpace(req.Base))
	if !currencyCodePattern.MatchString(base) {
		sendErrorResponse(w, h.logger, "Invalid currency code",
			"Base currency must be a 3-letter ISO 4217 code", http.StatusBadRequest, requestID)
		return
	}

	if err := h.scheduler.SetBase(r.Context(), base); err != nil {
		if r.Context().Err() != nil {
			sendErrorResponse(w, h.logger, "Base change not scheduled",
				"The request ended before the base change could be scheduled", http.StatusServiceUnavailable, requestID)
			return
		}
		sendErrorResponse(w, h.logger, "Invalid currency code", err.Error(), http.StatusBadRequest, requestID)
		return
	}

	h.logger.Info("Base currency change requested", map[string]interface{}{
		"request_id": requestID,
		"base":       base,
	})
	sendJSON(w, h.logger, http.StatusAccepted, AcceptedResponse{Status: "accepted", Base: base})
}

// Health reports liveness along with connectivity and scheduler state
func (h *RatesHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Online:      h.online(),
		Scheduler:   h.scheduler.State().String(),
		CachedBases: h.syncer.CachedBases(),
	}
	if h.connectivity != nil {
		changedAt := h.connectivity.ChangedAt()
		resp.ConnectivityChangedAt = &changedAt
	}
	if last := h.syncer.LastUpdated(); !last.IsZero() {
		resp.LastUpdated = &last
	}

	sendJSON(w, h.logger, http.StatusOK, resp)
}

func (h *RatesHandler) online() bool {
	return h.connectivity == nil || h.connectivity.Online()
}

// RegisterRoutes registers the rates handler routes
func (h *RatesHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rates", h.GetRates).Methods("GET")
	router.HandleFunc("/rates/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/rates/base", h.SetBase).Methods("PUT")
	router.HandleFunc("/health", h.Health).Methods("GET")

	h.logger.Info("Rates routes registered", map[string]interface{}{
		"routes": []string{
			"GET /rates",
			"POST /rates/refresh",
			"PUT /rates/base",
			"GET /health",
		},
	})
}
