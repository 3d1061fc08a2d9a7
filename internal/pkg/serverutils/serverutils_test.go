package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Message string `json:"message" validate:"required,max=10"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Message: "hi"}))

	err := ValidateRequest(sampleRequest{})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "is required", ve.Fields["Message"])

	err = ValidateRequest(sampleRequest{Message: "this is far too long"})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Error(), "at most 10")
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/validation", func(c *fiber.Ctx) error { return ValidateRequest(sampleRequest{}) })
	app.Get("/notfound", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "conversation not found") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: password authentication failed") })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/validation", 400, "validation failed: Message is required"},
		{"/notfound", 404, "conversation not found"},
		{"/boom", 500, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			var res BaseResponse[any]
			require.NoError(t, json.Unmarshal(body, &res))
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}
