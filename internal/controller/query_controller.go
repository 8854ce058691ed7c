package controller

import (
	"ai-trivia-bot/internal/dto"
	"ai-trivia-bot/internal/pkg/serverutils"
	"ai-trivia-bot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Ask(ctx *fiber.Ctx) error
}

type queryController struct {
	service service.IQueryService
}

func NewQueryController(service service.IQueryService) IQueryController {
	return &queryController{service: service}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/query/v1")
	h.Post("/ask", c.Ask)
}

// Ask resolves a question over HTTP. The gateway is never privileged: callers
// get the public miss message, the curator hint stays inside the chat.
func (c *queryController) Ask(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res := c.service.Ask(ctx.Context(), req.Question, false)

	return ctx.JSON(serverutils.SuccessResponse("Success resolve question", res))
}
