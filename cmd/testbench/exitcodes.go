package main

import (
	"errors"
	"net/http"

	"github.com/iota-uz/testbench/pkg/apiclient"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitAPI        = 5
	exitAuth       = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code, then derives one from service and API errors.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return exitAuth
		case http.StatusBadRequest:
			return exitValidation
		}
		return exitAPI
	}
	switch serrors.KindOf(err) {
	case serrors.KindValidation, serrors.KindConflict, serrors.KindNotFound:
		return exitValidation
	case serrors.KindAccessDenied, serrors.KindUnauthenticated:
		return exitAuth
	}
	return 1
}
