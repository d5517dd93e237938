package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/observability"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// ErrorHandler converts any handler error into the JSON error envelope and
// records it in the metrics registry.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			err = apperrors.NewDomainError("INTERNAL_ERROR", fiberErr.Message, fiberErr.Code, nil)
		}

		domainErr := apperrors.ToDomainError(err)
		if metrics != nil {
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("code", domainErr.Code),
			zap.Int("status", domainErr.HTTPStatus),
		}
		if domainErr.Err != nil {
			fields = append(fields, zap.Error(domainErr.Err))
		}
		if domainErr.HTTPStatus >= 500 {
			logger.Error("request failed", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		body := fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		}
		if len(domainErr.Details) > 0 {
			body["details"] = domainErr.Details
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
	}
}

// Recover turns handler panics into INTERNAL_ERROR responses instead of
// tearing down the connection.
func Recover(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Path()))
				err = apperrors.NewInternalError(nil)
			}
		}()
		return c.Next()
	}
}

// Timeout bounds the request-scoped context. Streaming endpoints subscribe on
// their own context and are unaffected.
func Timeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
