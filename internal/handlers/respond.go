package handlers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// OwnerHeader carries the authenticated owner identity set by the gateway
const OwnerHeader = "X-User-ID"

func ownerID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(OwnerHeader))
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// RequireOwner rejects requests without an owner identity
func RequireOwner(c *fiber.Ctx) error {
	if ownerID(c) == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "ERR_NO_OWNER", "Missing "+OwnerHeader+" header")
	}
	return c.Next()
}

// optionalID decodes an id field of a partial update: absent means unchanged
// (nil), while null or "" mean the library root (pointer to "")
func optionalID(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	id := ""
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &id, nil
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	return &id, nil
}
