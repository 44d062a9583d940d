package serrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:           http.StatusNotFound,
		KindAccessDenied:       http.StatusForbidden,
		KindValidation:         http.StatusBadRequest,
		KindConflict:           http.StatusConflict,
		KindUnauthenticated:    http.StatusUnauthorized,
		KindInternal:           http.StatusInternalServerError,
		KindReconciliationRace: http.StatusInternalServerError,
	}
	for kind, status := range cases {
		require.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOf_WalksWrappedChain(t *testing.T) {
	base := AccessDenied("PROJECT_NOT_ACCESSIBLE", "not accessible")
	wrapped := fmt.Errorf("load project: %w", base)

	require.Equal(t, KindAccessDenied, KindOf(wrapped))
	require.True(t, Is(wrapped, KindAccessDenied))
	require.False(t, Is(wrapped, KindNotFound))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.False(t, Is(nil, KindInternal))
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(KindConflict, "NAME_TAKEN", "name already exists", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, "name already exists: duplicate key", err.Error())
	require.Equal(t, http.StatusConflict, err.Status())
}
