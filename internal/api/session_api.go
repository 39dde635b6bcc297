package api

import (
	"net/http"

	"parkhub/internal/database"
	"parkhub/internal/metrics"
)

// SelectGarageRequest is the body of POST /api/session/garage.
type SelectGarageRequest struct {
	AdminID  int64 `json:"admin_id"`
	GarageID int64 `json:"garage_id"`
}

// handleSessionGarage reads, sets, or clears the admin's currently
// selected garage.
//
//	GET    /api/session/garage?admin_id=N
//	POST   /api/session/garage
//	DELETE /api/session/garage?admin_id=N
func (s *HTTPServer) handleSessionGarage(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_garage")

	switch r.Method {
	case http.MethodGet:
		adminID, err := queryInt64(r, "admin_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess, err := s.sessions.GetSession(r.Context(), adminID)
		if err != nil {
			s.log.Error().Err(err).Int64("admin_id", adminID).Msg("get session")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil {
			writeError(w, http.StatusNotFound, "no garage selected")
			return
		}
		writeJSON(w, http.StatusOK, sess)

	case http.MethodPost:
		var req SelectGarageRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.AdminID <= 0 || req.GarageID <= 0 {
			writeError(w, http.StatusBadRequest, "admin_id and garage_id are required")
			return
		}

		// Selecting an unknown garage is a dashboard bug; reject it.
		g, err := s.db.GetGarage(r.Context(), req.GarageID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if g == nil {
			writeError(w, http.StatusNotFound, "garage not found")
			return
		}

		sess := &database.AdminSession{AdminID: req.AdminID, GarageID: req.GarageID}
		if err := s.sessions.SetSession(r.Context(), sess); err != nil {
			s.log.Error().Err(err).Int64("admin_id", req.AdminID).Msg("set session")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case http.MethodDelete:
		adminID, err := queryInt64(r, "admin_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.sessions.ClearSession(r.Context(), adminID); err != nil {
			s.log.Error().Err(err).Int64("admin_id", adminID).Msg("clear session")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
