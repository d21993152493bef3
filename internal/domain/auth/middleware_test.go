package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Anvoria/identra/internal/credentials"
	"github.com/Anvoria/identra/internal/domain/token"
)

var testCookie = CookieOptions{Name: "identra_session"}

func protectedApp(svc *Service) *fiber.App {
	app := fiber.New()
	app.Get("/me", RequireAuth(svc, testCookie), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"username": GetIdentity(c).User.Username})
	})
	app.Get("/feed", OptionalAuth(svc, testCookie), func(c *fiber.Ctx) error {
		if GetIdentity(c) == nil {
			return c.SendString("anonymous")
		}
		return c.SendString("personalized")
	})
	app.Post("/mutate", RequireAuth(svc, testCookie), RequireCSRF(svc), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func issueForUser(t *testing.T, f *fixture, id uint) *token.Issued {
	t.Helper()
	u := testUser(id)
	issued, err := f.tokens.Issue(token.IdentityClaims{UserID: id, Username: u.Username})
	require.NoError(t, err)
	f.sessions.On("IsValid", id, issued.JTI).Return(true, nil)
	f.users.On("FindByID", id).Return(u, nil)
	return issued
}

func TestRequireAuth(t *testing.T) {
	t.Run("bearer token", func(t *testing.T) {
		f := newFixture(t)
		issued := issueForUser(t, f, 4)
		app := protectedApp(f.svc)

		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+issued.Raw)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("session cookie", func(t *testing.T) {
		f := newFixture(t)
		issued := issueForUser(t, f, 4)
		app := protectedApp(f.svc)

		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: issued.Raw})

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("header takes precedence over cookie", func(t *testing.T) {
		f := newFixture(t)
		issued := issueForUser(t, f, 4)
		app := protectedApp(f.svc)

		// Malformed header must not fall through to the valid cookie.
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer")
		req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: issued.Raw})

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("no credential", func(t *testing.T) {
		f := newFixture(t)
		app := protectedApp(f.svc)

		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("revoked session", func(t *testing.T) {
		f := newFixture(t)
		issued, err := f.tokens.Issue(token.IdentityClaims{UserID: 4, Username: "qo"})
		require.NoError(t, err)
		f.sessions.On("IsValid", uint(4), issued.JTI).Return(false, nil)
		app := protectedApp(f.svc)

		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+issued.Raw)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

// agedToken signs a token in the fixture's trust domain whose lifetime is
// more than half elapsed, so authenticating with it triggers rotation.
func agedToken(t *testing.T, userID string) string {
	t.Helper()

	key, err := jwk.Import([]byte("user-domain-secret-for-tests"))
	require.NoError(t, err)

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject(userID).
		JwtID(credentials.NewJTI()).
		Issuer("identra").
		Audience([]string{"identra:app"}).
		IssuedAt(now.Add(-5*24*time.Hour)).
		Expiration(now.Add(2*24*time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), key))
	require.NoError(t, err)
	return string(signed)
}

func TestSilentRotation(t *testing.T) {
	f := newFixture(t)
	u := testUser(4)
	f.sessions.On("IsValid", uint(4), mock.AnythingOfType("string")).Return(true, nil)
	f.sessions.On("Open", uint(4), mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).Return(nil)
	f.users.On("FindByID", uint(4)).Return(u, nil)
	app := protectedApp(f.svc)

	oldRaw := agedToken(t, "4")

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: oldRaw})

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1, "rotation writes a replacement cookie")
	newRaw := cookies[0].Value
	assert.NotEqual(t, oldRaw, newRaw)

	claims := f.tokens.Verify(newRaw)
	require.NotNil(t, claims, "rotated cookie carries a verifiable token")

	// The replacement CSRF token rides the response header and is bound to
	// the rotated credential's jti.
	header := resp.Header.Get(CSRFHeader)
	require.NotEmpty(t, header)
	assert.Equal(t, f.svc.CSRFToken(claims.JTI()), header)

	// A client that adopts both is not locked out of state-changing routes.
	mutate := httptest.NewRequest(fiber.MethodPost, "/mutate", nil)
	mutate.AddCookie(&http.Cookie{Name: testCookie.Name, Value: newRaw})
	mutate.Header.Set(CSRFHeader, header)

	resp, err = app.Test(mutate)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestOptionalAuth(t *testing.T) {
	f := newFixture(t)
	issued := issueForUser(t, f, 4)
	app := protectedApp(f.svc)

	t.Run("unauthenticated proceeds", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/feed", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("invalid credential proceeds unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/feed", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("valid credential attaches identity", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/feed", nil)
		req.Header.Set("Authorization", "Bearer "+issued.Raw)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestRequireCSRF(t *testing.T) {
	f := newFixture(t)
	issued := issueForUser(t, f, 4)
	app := protectedApp(f.svc)

	mutate := func(csrf string) *http.Response {
		req := httptest.NewRequest(fiber.MethodPost, "/mutate", nil)
		req.Header.Set("Authorization", "Bearer "+issued.Raw)
		if csrf != "" {
			req.Header.Set(CSRFHeader, csrf)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("matching token", func(t *testing.T) {
		resp := mutate(f.svc.CSRFToken(issued.JTI))
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := mutate("")
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("token for another session", func(t *testing.T) {
		resp := mutate(f.svc.CSRFToken("other-jti"))
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestSessionCookieAttributes(t *testing.T) {
	app := fiber.New()
	expires := time.Now().Add(time.Hour).UTC()
	app.Get("/set", func(c *fiber.Ctx) error {
		SetSessionCookie(c, CookieOptions{Name: "identra_session", Secure: true}, "raw-token", expires)
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/clear", func(c *fiber.Ctx) error {
		ClearSessionCookie(c, CookieOptions{Name: "identra_session"})
		return c.SendStatus(fiber.StatusOK)
	})

	t.Run("set", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/set", nil))
		require.NoError(t, err)

		cookies := resp.Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, "identra_session", c.Name)
		assert.Equal(t, "raw-token", c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	})

	t.Run("clear", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/clear", nil))
		require.NoError(t, err)

		cookies := resp.Cookies()
		require.Len(t, cookies, 1)
		assert.Empty(t, cookies[0].Value)
		assert.True(t, cookies[0].Expires.Before(time.Now()))
	})
}
