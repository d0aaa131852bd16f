// This file contains the actual validator implementation for incoming http requests.
//
// You can implement custom validators for each field in this file and reference them in the request structs.

package web

import (
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/queue"
)

var validate *validator.Validate

// Initialize the custom validator
func init() {
	validate = validator.New()
	validate.RegisterValidation("validQueueID", validateQueueID)
}

// ValidateRequest validates a request using a Fiber context and a request struct.
// It parses the request differently based on HTTP method.
func ValidateRequest(c *fiber.Ctx, req interface{}) error {
	switch c.Method() {
	case fiber.MethodGet:
		// For GET requests, we only need to parse query and path parameters
		if err := c.QueryParser(req); err != nil {
			return err
		}
		if err := c.ParamsParser(req); err != nil {
			return err
		}
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		// For requests with potential body content
		if err := c.BodyParser(req); err != nil {
			return err
		}
		if err := c.QueryParser(req); err != nil {
			return err
		}
	default:
		// Unsupported HTTP method
	}

	return validate.Struct(req)
}

// validateQueueID is a custom validator for queue IDs in a GetQueuePositionRequest.
func validateQueueID(fl validator.FieldLevel) bool {
	return slices.Contains([]string{queue.QueueAll, queue.QueueConvert}, fl.Field().String())
}
