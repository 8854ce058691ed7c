package controller

import (
	"ai-trivia-bot/internal/dto"
	"ai-trivia-bot/internal/pkg/serverutils"
	"ai-trivia-bot/internal/repository/archive"

	"github.com/gofiber/fiber/v2"
)

type IArchiveController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type archiveController struct {
	store    *archive.Store
	stats    *archive.StatsStore
	pageSize int
}

func NewArchiveController(store *archive.Store, stats *archive.StatsStore, pageSize int) IArchiveController {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &archiveController{store: store, stats: stats, pageSize: pageSize}
}

func (c *archiveController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/archive/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Get("/stats", c.Stats)
}

func (c *archiveController) List(ctx *fiber.Ctx) error {
	page := ctx.QueryInt("page", 0)
	if page < 0 {
		page = 0
	}

	snapshot := c.store.Snapshot()
	total := len(snapshot)
	totalPages := 0
	if total > 0 {
		totalPages = (total-1)/c.pageSize + 1
		if page > totalPages-1 {
			page = totalPages - 1
		}
	} else {
		page = 0
	}

	start := page * c.pageSize
	end := start + c.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	entries := make([]dto.ArchiveEntryResponse, 0, end-start)
	for _, e := range snapshot[start:end] {
		entries = append(entries, dto.ArchiveEntryResponse{Question: e.Question, Answer: e.Answer})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get archive", dto.ArchiveListResponse{
		Entries:    entries,
		Page:       page,
		PageSize:   c.pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}))
}

func (c *archiveController) Stats(ctx *fiber.Ctx) error {
	stats := c.stats.Stats()

	return ctx.JSON(serverutils.SuccessResponse("Success get stats", dto.StatsResponse{
		KnownUsers: len(stats.Users),
		LastAdded:  stats.LastAdded,
		Entries:    c.store.Len(),
	}))
}
