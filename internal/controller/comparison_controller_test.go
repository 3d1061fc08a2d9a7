package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/pkg/serverutils"
	"finverse-chatbot/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubComparisonService struct {
	lastInput dto.CompareInput
	err       error
}

func (s *stubComparisonService) Compare(ctx context.Context, in dto.CompareInput) (*dto.ComparisonResponse, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ComparisonResponse{Status: "success", ComparisonId: "cmp-1", Summary: "summary", ConversationId: in.ConversationId}, nil
}

func (s *stubComparisonService) Get(ctx context.Context, comparisonId string) (*dto.ComparisonResponse, error) {
	if comparisonId != "cmp-1" {
		return nil, service.ErrComparisonNotFound
	}
	return &dto.ComparisonResponse{Status: "success", ComparisonId: comparisonId, Cached: true}, nil
}

func newComparisonApp(svc *stubComparisonService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewComparisonController(svc, logger.NewNopLogger()).RegisterRoutes(app)
	return app
}

func TestCompareProducts(t *testing.T) {
	svc := &stubComparisonService{}
	app := newComparisonApp(svc)
	a, b := uuid.NewString(), uuid.NewString()

	status, body := doJSON(t, app, "POST", "/compare-products",
		fmt.Sprintf(`{"product_ids":["%s","%s","%s"],"conversation_id":"c1","comparison_fields":["interestRate"]}`, a, b, a))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "cmp-1", body["comparison_id"])
	assert.Equal(t, "c1", body["conversation_id"])
	require.Len(t, svc.lastInput.ProductIds, 2)
	assert.Equal(t, a, svc.lastInput.ProductIds[0].String())
	assert.Equal(t, []string{"interestRate"}, svc.lastInput.Fields)

	status, _ = doJSON(t, app, "POST", "/compare-products", fmt.Sprintf(`{"productIds":["%s","%s"]}`, a, b))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestCompareProductsRejectsBadInput(t *testing.T) {
	app := newComparisonApp(&stubComparisonService{})
	a := uuid.NewString()

	status, body := doJSON(t, app, "POST", "/compare-products", fmt.Sprintf(`{"product_ids":["%s"]}`, a))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "At least 2 products are required for comparison", body["message"])

	status, _ = doJSON(t, app, "POST", "/compare-products", fmt.Sprintf(`{"product_ids":["%s","%s"]}`, a, a))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON(t, app, "POST", "/compare-products", fmt.Sprintf(`{"product_ids":["%s","not-a-uuid"]}`, a))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCompareProductsMapsServiceErrors(t *testing.T) {
	body := fmt.Sprintf(`{"product_ids":["%s","%s"]}`, uuid.NewString(), uuid.NewString())

	status, _ := doJSON(t, newComparisonApp(&stubComparisonService{err: service.ErrTooFewProductsFound}), "POST", "/compare-products", body)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doJSON(t, newComparisonApp(&stubComparisonService{err: fmt.Errorf("%w: colour", service.ErrUnknownComparisonField)}), "POST", "/compare-products", body)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, res := doJSON(t, newComparisonApp(&stubComparisonService{err: errors.New("db down")}), "POST", "/compare-products", body)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", res["message"])
}

func TestGetComparison(t *testing.T) {
	app := newComparisonApp(&stubComparisonService{})

	status, body := doJSON(t, app, "GET", "/comparisons/cmp-1", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["cached"])

	status, _ = doJSON(t, app, "GET", "/comparisons/unknown", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
