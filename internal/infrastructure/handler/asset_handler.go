package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/middleware"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/proxy"
	"github.com/gorilla/mux"
)

// passedHeaders are copied from the upstream response to the caller
var passedHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	proxy.Header,
	proxy.StoredAtHeader,
}

// AssetHandler serves static assets through the cache proxy
type AssetHandler struct {
	client  *http.Client
	baseURL string
	logger  logger.Logger
}

// NewAssetHandler creates a handler fetching assets below baseURL with client
func NewAssetHandler(client *http.Client, baseURL string, log logger.Logger) *AssetHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &AssetHandler{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
	}
}

// GetAsset fetches one asset, served from the static cache partition when present
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	path := mux.Vars(r)["path"]

	if strings.Contains(path, "..") {
		sendErrorResponse(w, h.logger, "Invalid asset path",
			"Asset paths must not contain '..'", http.StatusBadRequest, requestID)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.baseURL+"/"+path, nil)
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid asset path", err.Error(), http.StatusBadRequest, requestID)
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("Asset fetch failed", map[string]interface{}{
			"request_id": requestID,
			"path":       path,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Asset unavailable",
			"The asset is not cached and could not be fetched", http.StatusBadGateway, requestID)
		return
	}
	defer resp.Body.Close()

	for _, name := range passedHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("Failed to stream asset", map[string]interface{}{
			"request_id": requestID,
			"path":       path,
			"error":      err.Error(),
		})
	}
}

// RegisterRoutes registers the asset route
func (h *AssetHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/assets/{path:.+}", h.GetAsset).Methods("GET")

	h.logger.Info("Asset routes registered", map[string]interface{}{
		"routes": []string{"GET /assets/{path}"},
	})
}
