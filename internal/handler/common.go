package handler // handler defines the HTTP handlers of the API

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/middleware"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
)

// dbTimeout bounds the database work of a single request.
const dbTimeout = 5 * time.Second

// RequestValidator adapts validator/v10 to echo's Validator interface so
// handlers can call c.Validate on bound request bodies.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator reports fields by their json name.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// bindValid binds the body into dst and runs struct validation.  The
// returned message is ready to be sent to the client.
func bindValid(c echo.Context, dst interface{}) (string, bool) {
	if err := c.Bind(dst); err != nil {
		return "invalid request body", false
	}
	if err := c.Validate(dst); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return fieldMessage(fe), false
		}
		return "invalid request body", false
	}
	return "", true
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "gt", "gte":
		return field + " must be greater than " + fe.Param()
	}
	return field + " is invalid"
}

// requestCtx returns the request context bounded by dbTimeout.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// getUserID extracts the authenticated user id set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.UserID(c); ok {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
}

func notFoundMsg(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, echo.Map{"message": msg})
}

// statusFor maps a workflow error kind to an HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation, service.KindBusinessRule:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"message": ...}.  Store failures are logged
// and replaced by a generic message; repository sentinels coming from
// plain reads are mapped as well.
func respondError(c echo.Context, log logger.ILogger, module string, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		status := statusFor(se.Kind)
		if se.Kind == service.KindStore {
			log.Error(module, se.Message, map[string]interface{}{
				"error":      err,
				"request_id": middleware.GetRequestID(c),
			})
			return c.JSON(status, echo.Map{"message": "internal server error"})
		}
		return c.JSON(status, echo.Map{"message": se.Message})
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
	case errors.Is(err, repository.ErrUserExists):
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": "conflict"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	log.Error(module, "request failed", map[string]interface{}{
		"error":      err,
		"request_id": middleware.GetRequestID(c),
	})
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal server error"})
}

// validDate reports whether s is a YYYY-MM-DD calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
