package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/journal"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 3 * time.Second

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	BootedAt     time.Time           `json:"booted_at"`
	UptimeS      int64               `json:"uptime_s"`
	Connectivity connectivity.Status `json:"connectivity"`
	Device       DeviceResponse      `json:"device"`
}

// DeviceResponse carries the network facts of the device.
type DeviceResponse struct {
	IP     string `json:"ip,omitempty"`
	MAC    string `json:"mac,omitempty"`
	Signal *int   `json:"signal_dbm,omitempty"`
}

// handleHealth runs every registered component check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// handleStatus returns the supervisor status and device facts.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Name:         s.name,
		Version:      s.version,
		BootedAt:     s.booted,
		Connectivity: s.status.Status(),
	}
	if !s.booted.IsZero() {
		resp.UptimeS = int64(time.Since(s.booted).Seconds())
	}
	if s.info != nil {
		info := s.info.Info()
		resp.Device = DeviceResponse{IP: info.IP, MAC: info.MAC}
		if info.HasSignal {
			signal := info.Signal
			resp.Device.Signal = &signal
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents lists journal entries. Query parameters: kind, layer,
// since (RFC 3339), limit, offset.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal is disabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Kind:  q.Get("kind"),
		Layer: q.Get("layer"),
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("journal list failed", "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
