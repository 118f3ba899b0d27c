package serverutils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprintFor(t *testing.T, forwardedFor, userAgent string) string {
	t.Helper()

	app := fiber.New()
	app.Use(FingerprintMiddleware())

	var got string
	app.Get("/", func(ctx *fiber.Ctx) error {
		got = SessionID(ctx)
		return ctx.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return got
}

func TestClientFingerprint_StableForSameClient(t *testing.T) {
	first := fingerprintFor(t, "203.0.113.7", "Mozilla/5.0")
	second := fingerprintFor(t, "203.0.113.7", "Mozilla/5.0")

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestClientFingerprint_DiffersByClient(t *testing.T) {
	base := fingerprintFor(t, "203.0.113.7", "Mozilla/5.0")

	assert.NotEqual(t, base, fingerprintFor(t, "203.0.113.8", "Mozilla/5.0"))
	assert.NotEqual(t, base, fingerprintFor(t, "203.0.113.7", "curl/8.0"))
}

func TestClientFingerprint_UsesFirstForwardedHop(t *testing.T) {
	direct := fingerprintFor(t, "203.0.113.7", "Mozilla/5.0")
	viaProxy := fingerprintFor(t, "203.0.113.7, 10.0.0.1", "Mozilla/5.0")

	assert.Equal(t, direct, viaProxy)
}

func TestValidateRequest(t *testing.T) {
	type payload struct {
		Query string `validate:"required,min=1"`
		Year  string `validate:"omitempty,oneof=SARJANA MAGISTER"`
	}

	assert.NoError(t, ValidateRequest(payload{Query: "syarat kelulusan"}))

	err := ValidateRequest(payload{Query: "", Year: "SMP"})
	require.Error(t, err)
	fiberErr, ok := err.(*fiber.Error)
	require.True(t, ok)
	assert.Equal(t, fiber.StatusBadRequest, fiberErr.Code)
	assert.Contains(t, fiberErr.Message, "Query")
	assert.Contains(t, fiberErr.Message, "Year")
}
