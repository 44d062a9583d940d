package controllers

import (
	"net/http"

	"github.com/iota-uz/testbench/pkg/httpapi"
)

// NotFound answers unmatched routes with the JSON error envelope.
func NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "not found", map[string]string{
			"path":       r.URL.Path,
			"request_id": httpapi.RequestID(w, r),
		})
	}
}

func MethodNotAllowed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", map[string]string{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": httpapi.RequestID(w, r),
		})
	}
}
