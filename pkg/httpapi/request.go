package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/pkg/serrors"
)

const maxJSONBody = 1 << 20

// DecodeJSON reads a single JSON object from the request body. Unknown fields and
// trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return serrors.Validation("INVALID_BODY", "request body is empty")
		}
		return serrors.Wrap(serrors.KindValidation, "INVALID_BODY", "request body is not valid JSON", err)
	}
	if dec.More() {
		return serrors.Validation("INVALID_BODY", "request body must hold a single JSON object")
	}
	return nil
}

// PathUUID parses the mux route variable name. A malformed id cannot name any
// resource, so it is reported as not found.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, serrors.NotFound("NOT_FOUND", "not found")
	}
	return id, nil
}

// QueryUUID parses an optional query parameter; absent means uuid.Nil.
func QueryUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, serrors.ValidationFields("INVALID_QUERY", map[string]string{name: "must be a UUID"})
	}
	return id, nil
}
