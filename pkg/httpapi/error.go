package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// RequestID returns the request id of r, generating one (and echoing it back) when absent.
func RequestID(w http.ResponseWriter, r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(configuration.Use().RequestIDHeader)
	if header == "" {
		header = "X-Request-ID"
	}
	requestID := strings.TrimSpace(r.Header.Get(header))
	if requestID == "" {
		requestID = strings.TrimSpace(w.Header().Get("X-Request-Id"))
	}
	if requestID == "" {
		requestID = uuid.NewString()
		w.Header().Set(header, requestID)
	}
	return requestID
}

// WriteServiceError renders err as an envelope. Typed errors keep their kind, code and
// message; anything else is logged and reported as an opaque 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	meta := map[string]string{"request_id": RequestID(w, r)}

	var svcErr *serrors.Error
	if errors.As(err, &svcErr) && svcErr.Kind != serrors.KindInternal && svcErr.Kind != serrors.KindReconciliationRace {
		if svcErr.Kind == serrors.KindAccessDenied {
			composables.UseLogger(r.Context()).WithField("code", svcErr.Code).Warn("access denied")
		}
		_ = WriteJSON(w, svcErr.Status(), &ErrorEnvelope{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Fields:  svcErr.Fields,
			Meta:    meta,
		})
		return
	}

	composables.UseLogger(r.Context()).WithError(err).Error("unexpected error")
	_ = WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", meta)
}

// ListResponse wraps collection payloads. Data is never null.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func NewList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Total: len(items)}
}
