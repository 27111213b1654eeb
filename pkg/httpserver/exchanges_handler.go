package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// CatalogFunc returns the exchanges the service currently supports.
type CatalogFunc func() []types.ExchangeInfo

// ExchangesHandler serves the exchange catalogue.
type ExchangesHandler struct {
	catalog CatalogFunc
	logger  *zap.Logger
}

// NewExchangesHandler creates a new exchanges handler.
func NewExchangesHandler(catalog CatalogFunc, logger *zap.Logger) *ExchangesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangesHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ExchangesResponse is the body of GET /exchanges.
type ExchangesResponse struct {
	Exchanges []types.ExchangeInfo `json:"exchanges"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleList handles GET /exchanges, optionally filtered by ?type=cex|dex.
func (h *ExchangesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := strings.ToLower(r.URL.Query().Get("type"))
	if filter != "" && filter != string(types.ExchangeTypeCEX) && filter != string(types.ExchangeTypeDEX) {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "type must be cex or dex"})
		return
	}

	infos := make([]types.ExchangeInfo, 0)
	for _, info := range h.catalog() {
		if filter == "" || string(info.Type) == filter {
			infos = append(infos, info)
		}
	}

	h.writeJSON(w, http.StatusOK, ExchangesResponse{Exchanges: infos})
}

// HandleGet handles GET /exchanges/{name}.
func (h *ExchangesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "name"))

	for _, info := range h.catalog() {
		if info.Name == name {
			h.writeJSON(w, http.StatusOK, info)
			return
		}
	}

	h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "exchange not supported: " + name})
}

func (h *ExchangesHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		h.logger.Error("response-encode-failed", zap.Error(err))
	}
}
