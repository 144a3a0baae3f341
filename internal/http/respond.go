package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expenses/internal/remote"
	"expenses/internal/remote/rest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, rest.ErrorResponse{Error: msg})
}

// writeRemoteError maps a backend error onto a status code. Messages of
// internal failures are not exposed.
func writeRemoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		writeError(w, http.StatusNotFound, remote.ErrNotFound.Error())
	case errors.Is(err, remote.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, remote.ErrPermissionDenied.Error())
	case errors.Is(err, remote.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
