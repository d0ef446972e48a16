package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository/memstore"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "desk", time.Minute)
	token, expiresAt, err := tm.GenerateToken("u1", domain.RoleManager)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expected future expiry")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != domain.RoleManager {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	token, _, _ := NewTokenManager("secret", "desk", time.Minute).GenerateToken("u1", domain.RoleMember)

	if _, err := NewTokenManager("other", "desk", time.Minute).ParseToken(token); err == nil {
		t.Fatal("expected signature failure")
	}
	if _, err := NewTokenManager("secret", "elsewhere", time.Minute).ParseToken(token); err == nil {
		t.Fatal("expected issuer failure")
	}
}

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	tm := NewTokenManager("secret", "", time.Minute)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm, store)
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		actor, err := ActorFromContext(c)
		if err != nil {
			return err
		}
		return c.SendString(actor.UserID + ":" + string(actor.Role))
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tm, store
}

func TestMiddlewareLoadsStoredRole(t *testing.T) {
	app, tm, store := newTestApp(t)
	user := &domain.User{ID: "u1", Name: "Dana", Role: domain.RoleMember, IsActive: true, IsApproved: true}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatal(err)
	}

	// The token claims admin but the stored role wins.
	token, _, _ := tm.GenerateToken("u1", domain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMiddlewareRejectsMissingAndUnknown(t *testing.T) {
	app, tm, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", resp.StatusCode)
	}

	token, _, _ := tm.GenerateToken("ghost", domain.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", resp.StatusCode)
	}
}
