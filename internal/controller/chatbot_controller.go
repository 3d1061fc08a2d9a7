package controller

import (
	"errors"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/pkg/serverutils"
	"finverse-chatbot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	ProductChat(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
	Ingest(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	ListConversations(ctx *fiber.Ctx) error
	CleanupConversations(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

const (
	defaultConversationLimit = 100
	defaultCleanupDays       = 30
)

type chatbotController struct {
	chatbotService service.IChatbotService
	ingestService  service.IIngestService
	healthService  service.IHealthService
	logger         logger.ILogger
}

func NewChatbotController(
	chatbotService service.IChatbotService,
	ingestService service.IIngestService,
	healthService service.IHealthService,
	logger logger.ILogger,
) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		ingestService:  ingestService,
		healthService:  healthService,
		logger:         logger,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	r.Post("/chat", c.Chat)
	r.Post("/product-chat", c.ProductChat)
	r.Get("/stats", c.Stats)
	r.Post("/ingest", c.Ingest)
	r.Get("/conversations", c.ListConversations)
	r.Post("/conversations/cleanup", c.CleanupConversations)
	r.Get("/conversations/:id/history", c.History)
	r.Delete("/conversations/:id", c.DeleteConversation)
	r.Get("/health", c.Health)
}

// Chat answers with HTTP 200 even when generation failed; the body carries success=false
func (c *chatbotController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	in := req.Normalize()
	if err := serverutils.ValidateRequest(in); err != nil {
		return err
	}

	return ctx.JSON(c.chatbotService.Chat(ctx.UserContext(), in))
}

func (c *chatbotController) ProductChat(ctx *fiber.Ctx) error {
	var req dto.ProductChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	in, ok := req.Normalize()
	if err := serverutils.ValidateRequest(in); err != nil {
		return err
	}
	if !ok && req.ProductIdValue() == "" {
		return fiber.NewError(fiber.StatusBadRequest, "productId is required")
	}
	// a malformed id is answered like an unknown product

	return ctx.JSON(c.chatbotService.ProductChat(ctx.UserContext(), in))
}

func (c *chatbotController) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(c.chatbotService.Stats(ctx.UserContext()))
}

func (c *chatbotController) Ingest(ctx *fiber.Ctx) error {
	count, err := c.ingestService.QueueCatalog(ctx.UserContext())
	if err != nil {
		c.logger.Error("CHATBOT_CONTROLLER", "Failed to queue catalog", map[string]interface{}{"error": err.Error()})
		return err
	}

	return ctx.JSON(dto.IngestResponse{
		Status:        "success",
		Message:       "Catalog queued for indexing",
		IngestedCount: count,
	})
}

func (c *chatbotController) History(ctx *fiber.Ctx) error {
	res, err := c.chatbotService.History(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return conversationError(err)
	}
	return ctx.JSON(res)
}

func (c *chatbotController) DeleteConversation(ctx *fiber.Ctx) error {
	if err := c.chatbotService.DeleteConversation(ctx.UserContext(), ctx.Params("id")); err != nil {
		return conversationError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Conversation deleted", nil))
}

func (c *chatbotController) ListConversations(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", defaultConversationLimit)
	if limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive number")
	}
	return ctx.JSON(c.chatbotService.ListConversations(ctx.UserContext(), limit))
}

// CleanupConversations deletes conversations idle for more than ?days (default 30)
func (c *chatbotController) CleanupConversations(ctx *fiber.Ctx) error {
	days := ctx.QueryInt("days", defaultCleanupDays)
	if days <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "days must be a positive number")
	}
	return ctx.JSON(c.chatbotService.CleanupConversations(ctx.UserContext(), time.Duration(days)*24*time.Hour))
}

func (c *chatbotController) Health(ctx *fiber.Ctx) error {
	res := c.healthService.Check(ctx.UserContext())
	if res.Status != "healthy" {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(res)
	}
	return ctx.JSON(res)
}

func conversationError(err error) error {
	if errors.Is(err, service.ErrConversationNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	}
	return err
}
