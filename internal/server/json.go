package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/playperu/manhunt/internal/engine"
	"github.com/playperu/manhunt/internal/manhunt"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps a command error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrGameNotFound),
		errors.Is(err, engine.ErrNoActiveGame),
		errors.Is(err, engine.ErrNoSession),
		errors.Is(err, manhunt.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotSponsor),
		errors.Is(err, engine.ErrOwnGame),
		errors.Is(err, engine.ErrNotHunter):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAlreadySponsor),
		errors.Is(err, engine.ErrAlreadyHunter),
		errors.Is(err, engine.ErrNotJoinable),
		errors.Is(err, engine.ErrGameEnded),
		errors.Is(err, manhunt.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidLocation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeCommandError answers a failed command with the text the person should
// see. Unexpected errors are logged and their details withheld.
func writeCommandError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("command failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Message: engine.UserMessage(err)})
}
