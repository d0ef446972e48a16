package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/dto"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// bind parses the JSON body into req and runs struct validation.
func bind(c *fiber.Ctx, req interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if errs := dto.Validate(req); errs != nil {
		details := make(map[string]any, len(errs))
		for field, msg := range errs {
			details[field] = msg
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optional(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}
