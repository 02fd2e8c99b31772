package nodeapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/plexsphere/wgtunnel/internal/backend"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

// Tunnels abstracts the running tunnels served on the socket.
type Tunnels interface {
	Active() []string
	Status(ctx context.Context, name string) (*wgconf.TunnelConfiguration, error)
}

// Reconciler is triggered by POST /v1/reconcile.
type Reconciler interface {
	TriggerReconcile()
}

// Handler provides HTTP handlers for the control socket.
type Handler struct {
	tunnels    Tunnels
	reconciler Reconciler
	logger     *slog.Logger
}

// NewHandler creates a new Handler. reconciler may be nil, in which case
// reconcile requests are refused.
func NewHandler(tunnels Tunnels, reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		tunnels:    tunnels,
		reconciler: reconciler,
		logger:     logger.With("component", "nodeapi"),
	}
}

// Mux returns a configured ServeMux with all control socket routes.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tunnels", h.handleListTunnels)
	mux.HandleFunc("GET /v1/tunnels/{name}", h.handleGetTunnel)
	mux.HandleFunc("POST /v1/reconcile", h.handleReconcile)
	return mux
}

func (h *Handler) handleListTunnels(w http.ResponseWriter, r *http.Request) {
	names := h.tunnels.Active()
	out := make([]TunnelStatus, 0, len(names))
	for _, name := range names {
		st, err := h.tunnels.Status(r.Context(), name)
		if err != nil {
			// A tunnel stopped since Active was read is simply omitted.
			if !errors.Is(err, backend.ErrInactive) {
				h.logger.Warn("status read failed", "name", name, "error", err)
			}
			continue
		}
		out = append(out, NewTunnelStatus(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetTunnel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	st, err := h.tunnels.Status(r.Context(), name)
	if errors.Is(err, backend.ErrInactive) {
		writeError(w, http.StatusNotFound, "tunnel not running")
		return
	}
	if err != nil {
		h.logger.Error("status read failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, NewTunnelStatus(st))
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciler not running")
		return
	}
	h.reconciler.TriggerReconcile()
	h.logger.Info("reconcile requested over socket")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
