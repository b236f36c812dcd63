package handlers

import (
	"net/http"

	"github.com/debugops/debugops/internal/api"
	"github.com/debugops/debugops/internal/middleware"
)

// HTTPHandler handles HTTP endpoints
type HTTPHandler struct {
	version   string
	storeName string
	engine    func() string
}

// NewHTTPHandler creates a new HTTP handler. engine reports the analyzer label
// and may be nil.
func NewHTTPHandler(version, storeName string, engine func() string) *HTTPHandler {
	return &HTTPHandler{
		version:   version,
		storeName: storeName,
		engine:    engine,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Store:   h.storeName,
	}
	if h.engine != nil {
		resp.Engine = h.engine()
	}
	api.RespondJSON(w, http.StatusOK, resp)
}

// Chain wraps the router in the request middleware: request id, access log,
// CORS, then JWT authentication closest to the routes.
func Chain(mux http.Handler, cors *middleware.CORSMiddleware, jwtAuth *middleware.JWTAuthMiddleware) http.Handler {
	var h http.Handler = mux
	if jwtAuth != nil {
		h = jwtAuth.Wrap(h)
	}
	if cors != nil {
		h = cors.Wrap(h)
	}
	return middleware.RequestIDMiddleware(middleware.AccessLog(h))
}
