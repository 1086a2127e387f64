package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
)

// MustOpenAPIValidator creates an OpenAPI request validator and panics on setup failure.
func MustOpenAPIValidator(doc *openapi3.T) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(doc)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator rejects requests that do not conform to doc with a
// 400 VALIDATION_FAILED. Paths absent from doc pass through.
func NewOpenAPIValidator(doc *openapi3.T) (gin.HandlerFunc, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}
	opts := &openapi3filter.Options{
		// JWT is handled by dedicated middleware in the router chain.
		AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
	}

	return func(c *gin.Context) {
		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			if isPathNotFoundError(err) {
				c.Next()
				return
			}
			Abort(c, apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error()))
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    opts,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			logger.Ctx(c.Request.Context()).Debug("Request rejected by OpenAPI contract",
				zap.String("operation", route.Operation.OperationID),
				zap.Error(err),
			)
			Abort(c, apperrors.BadRequest(apperrors.CodeValidationFailed, validationReason(err)))
			return
		}
		c.Next()
	}, nil
}

func isPathNotFoundError(err error) bool {
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) && strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error()) {
		return true
	}
	return strings.Contains(err.Error(), routers.ErrPathNotFound.Error())
}

// validationReason trims kin-openapi's nested error text to the part a
// client can act on.
func validationReason(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			if field := strings.Join(schemaErr.JSONPointer(), "."); field != "" {
				return field + ": " + schemaErr.Reason
			}
			return schemaErr.Reason
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q is invalid", reqErr.Parameter.Name)
		}
		if reqErr.Reason != "" {
			return reqErr.Reason
		}
	}
	return err.Error()
}
