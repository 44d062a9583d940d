package constants

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	TenantIDKey  ContextKey = "tenantID"
	UserKey      ContextKey = "user"
	ParamsKey    ContextKey = "params"
	AppKey       ContextKey = "app"
	RequestStart ContextKey = "requestStart"
)

const (
	CSRFTokenHeader = "X-CSRF-Token"
	APIPrefix       = "/api/v1"
)

// Validate reports fields by their json names so messages match request payloads.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}
