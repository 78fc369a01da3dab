package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/nikhilbhutani/eventdesk/internal/apperr"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string              `json:"error"`
	Details []apperr.FieldError `json:"details,omitempty"`
	Hint    string              `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError renders err with the status apperr assigns it. Causes of
// internal errors are logged here and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	body := errorBody{Error: err.Error()}

	var (
		inv    *apperr.ValidationError
		schema *apperr.SchemaNotReadyError
	)
	switch {
	case errors.As(err, &inv):
		body = errorBody{Error: "invalid input", Details: inv.Fields}
	case errors.As(err, &schema):
		body = errorBody{Error: "schema not ready", Hint: "apply migration " + schema.Migration}
		hlog.FromRequest(r).Error().Str("migration", schema.Migration).Msg("schema not ready")
	case status == http.StatusUnauthorized:
		body = errorBody{Error: "not authenticated"}
	case status == http.StatusForbidden:
		body = errorBody{Error: "not authorized"}
	case status >= http.StatusInternalServerError:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		body = errorBody{Error: "internal error"}
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object into dst. Malformed bodies are
// validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.InvalidField(typeErr.Field, "has the wrong type")
		}
		return apperr.InvalidField("body", "must be a JSON object")
	}
	return nil
}

func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, apperr.Unauthenticated()
	}
	return id, nil
}
