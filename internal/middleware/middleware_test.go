package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/PashamDhanushReddy/TalentLink/internal/utils"
)

const testSecret = "test-secret"

func okHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true})
}

func doRequest(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestJWTFromBearer(t *testing.T) {
	app := fiber.New()
	app.Get("/ping", JWTFromBearer(testSecret), AttachJWTLocals(), okHandler)

	if resp := doRequest(t, app, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", resp.StatusCode)
	}
	if resp := doRequest(t, app, "garbage"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", resp.StatusCode)
	}

	wrongKey, _ := utils.SignJWT("other-secret", "u1", "client", "access", 5)
	if resp := doRequest(t, app, wrongKey); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d, want 401", resp.StatusCode)
	}

	refresh, _ := utils.SignJWT(testSecret, "u1", "client", "refresh", 5)
	if resp := doRequest(t, app, refresh); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh token status = %d, want 401", resp.StatusCode)
	}

	expired, _ := utils.SignJWT(testSecret, "u1", "client", "access", -5)
	if resp := doRequest(t, app, expired); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token status = %d, want 401", resp.StatusCode)
	}

	access, _ := utils.SignJWT(testSecret, "u1", "client", "access", 5)
	if resp := doRequest(t, app, access); resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token status = %d, want 200", resp.StatusCode)
	}
}

func TestAttachJWTLocals(t *testing.T) {
	app := fiber.New()
	var gotUserID, gotRole string
	app.Get("/ping", JWTFromBearer(testSecret), AttachJWTLocals(), func(c *fiber.Ctx) error {
		gotUserID, _ = c.Locals("userId").(string)
		gotRole, _ = c.Locals("role").(string)
		return okHandler(c)
	})

	token, _ := utils.SignJWT(testSecret, "user-42", "CLIENT", "access", 5)
	if resp := doRequest(t, app, token); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if gotUserID != "user-42" {
		t.Fatalf("userId = %q", gotUserID)
	}
	if gotRole != "client" {
		t.Fatalf("role = %q, want lowercased", gotRole)
	}
}

func TestRequireRoles(t *testing.T) {
	app := fiber.New()
	app.Get("/ping", JWTFromBearer(testSecret), AttachJWTLocals(), RequireRoles("client"), okHandler)

	freelancer, _ := utils.SignJWT(testSecret, "u1", "freelancer", "access", 5)
	if resp := doRequest(t, app, freelancer); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("freelancer status = %d, want 403", resp.StatusCode)
	}

	client, _ := utils.SignJWT(testSecret, "u1", "client", "access", 5)
	if resp := doRequest(t, app, client); resp.StatusCode != http.StatusOK {
		t.Fatalf("client status = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	store := NewLimiterStore(60, 2, time.Minute)
	defer store.Stop()

	app := fiber.New()
	app.Get("/ping", func(c *fiber.Ctx) error {
		c.Locals("userId", c.Get("X-User"))
		return c.Next()
	}, RateLimit(store), okHandler)

	ping := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if ping("alice") != http.StatusOK || ping("alice") != http.StatusOK {
		t.Fatal("requests within burst should pass")
	}
	if ping("alice") != http.StatusTooManyRequests {
		t.Fatal("request over burst should be limited")
	}
	// Another user has an independent budget.
	if ping("bob") != http.StatusOK {
		t.Fatal("other user should not be limited")
	}
}

func TestLimiterStoreAllow(t *testing.T) {
	store := NewLimiterStore(60, 1, time.Minute)
	defer store.Stop()

	if !store.Allow("k") {
		t.Fatal("first event should pass")
	}
	if store.Allow("k") {
		t.Fatal("second immediate event should be limited")
	}
	if !store.Allow("other") {
		t.Fatal("keys are independent")
	}
}
