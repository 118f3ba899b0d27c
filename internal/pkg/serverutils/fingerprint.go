package serverutils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/blake2b"
)

const SessionLocalKey = "session_id"

// FingerprintMiddleware derives a stable session id from the client's
// address and user agent. No cookies, no auth: the same browser keeps
// the same short-lived conversation.
func FingerprintMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		ctx.Locals(SessionLocalKey, ClientFingerprint(ctx))
		return ctx.Next()
	}
}

// ClientFingerprint prefers the first X-Forwarded-For hop so replicas
// behind a proxy agree on the id.
func ClientFingerprint(ctx *fiber.Ctx) string {
	ip := ctx.IP()
	if fwd := ctx.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip == "" {
		ip = "0.0.0.0"
	}
	ua := ctx.Get("User-Agent")

	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s|%s", ip, ua)))
	return hex.EncodeToString(sum[:16])
}

// SessionID reads the fingerprint set by FingerprintMiddleware.
func SessionID(ctx *fiber.Ctx) string {
	if id, ok := ctx.Locals(SessionLocalKey).(string); ok {
		return id
	}
	return ClientFingerprint(ctx)
}
