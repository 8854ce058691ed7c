package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ai-trivia-bot/internal/repository/archive"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// ErrorHandlerMiddleware converts service errors into stable HTTP statuses so
// controllers can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
		case errors.Is(err, archive.ErrNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, archive.ErrAmbiguousPrefix):
			status = fiber.StatusConflict
		}

		return ctx.Status(status).JSON(APIResponse{
			Success: false,
			Message: err.Error(),
		})
	}
}
