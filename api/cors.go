package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
)

const (
	corsAllowMethods = "POST, GET, OPTIONS, PUT, DELETE"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "86400"
)

// cors rejects requests from origins outside the policy and answers
// preflight requests. Allowed responses echo the request Origin.
func (s *Server) cors(c *fiber.Ctx) error {
	reqOrigin := c.Get(fiber.HeaderOrigin)

	if !s.config.Origins.IsAllowed(reqOrigin) {
		s.logger.Warn("CORS policy blocked request",
			"origin", reqOrigin,
			"method", c.Method(),
			"path", c.Path(),
		)
		return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{Error: "Forbidden: CORS"})
	}

	if reqOrigin != "" {
		c.Set(fiber.HeaderAccessControlAllowOrigin, reqOrigin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlMaxAge, corsMaxAge)
		c.Vary(fiber.HeaderOrigin)
	}

	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Next()
}
