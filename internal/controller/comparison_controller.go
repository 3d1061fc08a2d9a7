package controller

import (
	"errors"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/pkg/serverutils"
	"finverse-chatbot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IComparisonController interface {
	RegisterRoutes(r fiber.Router)
	Compare(ctx *fiber.Ctx) error
	Get(ctx *fiber.Ctx) error
}

type comparisonController struct {
	comparisonService service.IComparisonService
	logger            logger.ILogger
}

func NewComparisonController(comparisonService service.IComparisonService, logger logger.ILogger) IComparisonController {
	return &comparisonController{
		comparisonService: comparisonService,
		logger:            logger,
	}
}

func (c *comparisonController) RegisterRoutes(r fiber.Router) {
	r.Post("/compare-products", c.Compare)
	r.Get("/comparisons/:id", c.Get)
}

func (c *comparisonController) Compare(ctx *fiber.Ctx) error {
	var req dto.CompareProductsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	in, err := req.Normalize()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if len(in.ProductIds) < 2 {
		return fiber.NewError(fiber.StatusBadRequest, "At least 2 products are required for comparison")
	}
	if err := serverutils.ValidateRequest(in); err != nil {
		return err
	}

	res, err := c.comparisonService.Compare(ctx.UserContext(), in)
	if err != nil {
		return c.comparisonError(err)
	}
	return ctx.JSON(res)
}

func (c *comparisonController) Get(ctx *fiber.Ctx) error {
	res, err := c.comparisonService.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.comparisonError(err)
	}
	return ctx.JSON(res)
}

func (c *comparisonController) comparisonError(err error) error {
	switch {
	case errors.Is(err, service.ErrComparisonNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Comparison not found")
	case errors.Is(err, service.ErrTooFewProductsFound):
		return fiber.NewError(fiber.StatusNotFound, "At least 2 of the requested products must be listed")
	case errors.Is(err, service.ErrUnknownComparisonField):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	c.logger.Error("COMPARISON_CONTROLLER", "Comparison failed", map[string]interface{}{"error": err.Error()})
	return err
}
