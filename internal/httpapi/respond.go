package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

type errorBody struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{OK: false, Error: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorStatus maps service and store errors onto HTTP. ok is false for
// errors that should be logged and reported as internal.
func errorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, service.ErrTransient):
		return http.StatusServiceUnavailable, "store_unavailable", true
	case errors.Is(err, service.ErrInvalidStationID):
		return http.StatusBadRequest, "invalid_station_id", true
	case errors.Is(err, service.ErrInvalidSignal):
		return http.StatusBadRequest, "invalid_signal", true
	case errors.Is(err, service.ErrInvalidIdentityID):
		return http.StatusBadRequest, "invalid_identity_id", true
	case errors.Is(err, service.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name", true
	case errors.Is(err, service.ErrInvalidDescriptor):
		return http.StatusBadRequest, "invalid_descriptor", true
	case errors.Is(err, service.ErrUnknownStation):
		return http.StatusForbidden, "unknown_station", true
	case errors.Is(err, service.ErrStationNotScanning):
		return http.StatusConflict, "station_not_scanning", true
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", true
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "duplicate", true
	default:
		return http.StatusInternalServerError, "internal_error", false
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, ok := errorStatus(err)
	if !ok {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, code, "unexpected server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		s.logger.Warn("store unavailable", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, code, err.Error())
}
