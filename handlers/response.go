package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatlinkAPI/internal/directory"
	"chatlinkAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusForError maps the workflow and directory taxonomy onto HTTP codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrSelfRequest):
		return http.StatusBadRequest
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateRequest),
		errors.Is(err, services.ErrAlreadyFriends),
		errors.Is(err, services.ErrRequestClosed),
		errors.Is(err, directory.ErrExists):
		return http.StatusConflict
	case errors.Is(err, directory.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		// services.ErrPartialWrite lands here: a real failure the caller
		// must see, already logged and counted distinctly by the service.
		return http.StatusInternalServerError
	}
}
