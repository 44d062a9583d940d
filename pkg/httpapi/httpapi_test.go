package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/pkg/serrors"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"Shop"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
		{name: "unknown field", body: `{"name":"Shop","x":1}`, wantErr: true},
		{name: "trailing object", body: `{"name":"a"}{"name":"b"}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := DecodeJSON(r, &dst)
			if !tc.wantErr {
				require.NoError(t, err)
				require.Equal(t, "Shop", dst.Name)
				return
			}
			require.True(t, serrors.Is(err, serrors.KindValidation), err)
		})
	}
}

func TestPathUUID(t *testing.T) {
	id := uuid.New()
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id.String()})
	got, err := PathUUID(r, "id")
	require.NoError(t, err)
	require.Equal(t, id, got)

	r = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"})
	_, err = PathUUID(r, "id")
	require.True(t, serrors.Is(err, serrors.KindNotFound))
}

func TestQueryUUID(t *testing.T) {
	got, err := QueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "current")
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, got)

	_, err = QueryUUID(httptest.NewRequest(http.MethodGet, "/?current=bogus", nil), "current")
	require.True(t, serrors.Is(err, serrors.KindValidation))
	var svcErr *serrors.Error
	require.True(t, errors.As(err, &svcErr))
	require.Contains(t, svcErr.Fields, "current")
}

func TestWriteServiceError(t *testing.T) {
	t.Run("typed error keeps its code", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		WriteServiceError(w, r, serrors.Conflict("DUPLICATE_NAME", "name already used"))

		require.Equal(t, http.StatusConflict, w.Code)
		var env ErrorEnvelope
		require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
		require.Equal(t, "DUPLICATE_NAME", env.Code)
		require.NotEmpty(t, env.Meta["request_id"])
	})

	t.Run("untyped error is opaque", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "req-1")
		WriteServiceError(w, r, errors.New("pq: connection refused"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.NotContains(t, w.Body.String(), "connection refused")
		var env ErrorEnvelope
		require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
		require.Equal(t, "req-1", env.Meta["request_id"])
	})
}

func TestNewList_NeverNull(t *testing.T) {
	raw, err := json.Marshal(NewList[int](nil))
	require.NoError(t, err)
	require.JSONEq(t, `{"data":[],"total":0}`, string(raw))
}
