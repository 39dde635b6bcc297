package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"parkhub/internal/metrics"
	"parkhub/internal/model"
	"parkhub/internal/status"
)

// SetStatusRequest is the body of POST /api/status/set.
type SetStatusRequest struct {
	GarageID   int64  `json:"garage_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	ActorID    int64  `json:"actor_id"`
	ForceClose bool   `json:"force_close,omitempty"`
}

// SetScheduleRequest is the body of POST /api/schedule/set. Days are
// short names, e.g. ["mon","tue","fri"].
type SetScheduleRequest struct {
	GarageID             int64    `json:"garage_id"`
	Is247                bool     `json:"is_24_7"`
	OpeningTime          string   `json:"opening_time,omitempty"`
	ClosingTime          string   `json:"closing_time,omitempty"`
	OperatingDays        []string `json:"operating_days"`
	AcknowledgeEmptyDays bool     `json:"acknowledge_empty_days,omitempty"`
	ActorID              int64    `json:"actor_id"`
}

// ApplyOverrideRequest is the body of POST /api/override/apply.
type ApplyOverrideRequest struct {
	GarageID int64  `json:"garage_id"`
	Action   string `json:"action"`
	Until    string `json:"until"` // RFC3339
	Reason   string `json:"reason,omitempty"`
	ActorID  int64  `json:"actor_id"`
}

// CancelOverrideRequest is the body of POST /api/override/cancel.
type CancelOverrideRequest struct {
	GarageID int64 `json:"garage_id"`
	ActorID  int64 `json:"actor_id"`
}

// BatchStatusRequest is the body of POST /api/status/batch.
type BatchStatusRequest struct {
	GarageIDs []int64 `json:"garage_ids"`
}

// GarageStatusResponse pairs a garage with its effective status.
type GarageStatusResponse struct {
	Garage     model.Garage      `json:"garage"`
	Resolution status.Resolution `json:"resolution"`
}

// handleStatus returns the effective status of one garage.
// GET /api/status?garage_id=N
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	garageID, err := queryInt64(r, "garage_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Optional at param resolves for another instant, e.g. previewing
	// next weekend from the dashboard.
	at := time.Now()
	if v := r.URL.Query().Get("at"); v != "" {
		at, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at; expected RFC3339 timestamp")
			return
		}
	}

	res, err := s.resolver.Resolve(r.Context(), garageID, at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStatusBatch resolves many garages at once for list views.
// POST /api/status/batch
func (s *HTTPServer) handleStatusBatch(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status_batch")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req BatchStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.GarageIDs) == 0 {
		writeError(w, http.StatusBadRequest, "garage_ids is required")
		return
	}

	resolutions, err := s.resolver.ResolveAll(r.Context(), req.GarageIDs, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": resolutions})
}

// handleSetStatus changes the manual status of a garage.
// POST /api/status/set
func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status_set")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SetStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.mutator.SetStatus(r.Context(), req.GarageID, model.Status(req.Status), req.Reason, req.ActorID, req.ForceClose)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), req.GarageID, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resolution": res})
}

// handleSetSchedule replaces the weekly schedule of a garage.
// POST /api/schedule/set
func (s *HTTPServer) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_set")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SetScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	days, err := model.ParseDays(strings.Join(req.OperatingDays, ","))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	warning, err := s.mutator.SetSchedule(r.Context(), req.GarageID, status.ScheduleInput{
		Is247:                req.Is247,
		OpeningTime:          req.OpeningTime,
		ClosingTime:          req.ClosingTime,
		OperatingDays:        days,
		AcknowledgeEmptyDays: req.AcknowledgeEmptyDays,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{"success": true}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleApplyOverride appends a temporary override.
// POST /api/override/apply
func (s *HTTPServer) handleApplyOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("override_apply")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ApplyOverrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	until, err := time.Parse(time.RFC3339, req.Until)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid until; expected RFC3339 timestamp")
		return
	}

	err = s.mutator.ApplyOverride(r.Context(), req.GarageID, until, model.OverrideAction(req.Action), req.Reason, req.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), req.GarageID, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resolution": res})
}

// handleCancelOverride expires the active override, if any.
// POST /api/override/cancel
func (s *HTTPServer) handleCancelOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("override_cancel")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CancelOverrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.mutator.CancelOverride(r.Context(), req.GarageID, req.ActorID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleStatusHistory returns the change log of a garage, newest first.
// GET /api/status/history?garage_id=N&limit=M
func (s *HTTPServer) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("status_history")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	garageID, err := queryInt64(r, "garage_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
	}

	entries, err := s.db.GetStatusHistory(r.Context(), garageID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// handleListOverrides returns every override of a garage, including
// the expired ones kept for audit.
// GET /api/overrides?garage_id=N
func (s *HTTPServer) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("overrides")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	garageID, err := queryInt64(r, "garage_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overrides, err := s.db.ListOverrides(r.Context(), garageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

// handleListGarages returns all active garages with effective statuses.
// GET /api/garages
func (s *HTTPServer) handleListGarages(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("garages")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	garages, err := s.db.ListActiveGarages(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids := make([]int64, len(garages))
	for i, g := range garages {
		ids[i] = g.ID
	}
	resolutions, err := s.resolver.ResolveAll(r.Context(), ids, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]GarageStatusResponse, len(garages))
	for i, g := range garages {
		out[i] = GarageStatusResponse{Garage: g, Resolution: resolutions[g.ID]}
	}
	writeJSON(w, http.StatusOK, map[string]any{"garages": out})
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, &status.ValidationError{Field: name, Msg: "required"}
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &status.ValidationError{Field: name, Msg: "must be a positive integer"}
	}
	return id, nil
}
