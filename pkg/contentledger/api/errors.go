package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/content-ledger/pkg/contentledger"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps a ledger error onto an HTTP status code
func StatusFor(err error) int {
	switch contentledger.ErrorKind(err) {
	case "ok":
		return http.StatusOK
	case "invalid_argument":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "already_exists", "inactive_content", "duplicate_transaction":
		return http.StatusConflict
	case "unauthorized":
		return http.StatusForbidden
	case "amount_mismatch":
		return http.StatusUnprocessableEntity
	case "ledger_corrupted":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusFor(err)
	kind := contentledger.ErrorKind(err)

	body := ErrorResponse{Error: err.Error(), Kind: kind}
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "error", err, "kind", kind)
		if kind == "internal" {
			body.Error = http.StatusText(status)
		}
	} else {
		slog.Info(msg, "error", err, "kind", kind)
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: msg, Kind: "invalid_argument"})
}
