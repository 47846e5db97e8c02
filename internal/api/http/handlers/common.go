package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixzit/fm-service/internal/api/dto"
	"github.com/fixzit/fm-service/internal/auth"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/service"
	apperrors "github.com/fixzit/fm-service/pkg/util/errorutil"
)

// IdempotencyKeyHeader carries the client's request id for retried mutations.
const IdempotencyKeyHeader = "Idempotency-Key"

func sessionOf(c *fiber.Ctx) (domain.Session, error) {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return domain.Session{}, apperrors.NewUnauthorized("authentication required")
	}
	return session, nil
}

func idempotencyKey(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(IdempotencyKeyHeader))
}

func mutationResponse[T any](c *fiber.Ctx, result service.Result[T]) error {
	return c.JSON(fiber.Map{
		"data": result.Entity,
		"meta": dto.MutationMeta{Changed: result.Changed, Replayed: result.Replayed, Message: result.Message},
	})
}

func parseStatusRequest(c *fiber.Ctx) (service.StatusInput, error) {
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return service.StatusInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Status) == "" {
		return service.StatusInput{}, apperrors.NewValidationError("status required", map[string]any{"field": "status"})
	}
	return service.StatusInput{Status: req.Status, Comment: req.Comment}, nil
}

func parsePaging(c *fiber.Ctx) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTimeQuery(c *fiber.Ctx, key string, fallback time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("invalid "+key+"; expected RFC 3339", map[string]any{"field": key})
	}
	return t, nil
}
