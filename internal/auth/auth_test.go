package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/repository"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

type stubLoader map[string]domain.Identity

func (s stubLoader) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	identity, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func newTestApp(tokens *TokenManager, loader IdentityLoader) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(tokens, loader)
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(string(principal.Identity.Role))
	})
	app.Get("/admin", mw.Handle, RequireRoles(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken(domain.Identity{ID: "id-1", Role: domain.RoleFaculty})
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.Subject)
	assert.Equal(t, domain.RoleFaculty, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	loader := stubLoader{
		"stu": {ID: "stu", Role: domain.RoleStudent},
		"adm": {ID: "adm", Role: domain.RoleAdmin},
	}
	app := newTestApp(tm, loader)

	bearer := func(id string, role domain.Role) string {
		token, _, err := tm.GenerateToken(domain.Identity{ID: id, Role: role})
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", fiber.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", fiber.StatusUnauthorized},
		{"deleted identity", "/me", bearer("gone", domain.RoleStudent), fiber.StatusUnauthorized},
		{"student ok", "/me", bearer("stu", domain.RoleStudent), fiber.StatusOK},
		{"student on admin route", "/admin", bearer("stu", domain.RoleStudent), fiber.StatusForbidden},
		{"stale admin claim is reloaded", "/admin", bearer("stu", domain.RoleAdmin), fiber.StatusForbidden},
		{"admin ok", "/admin", bearer("adm", domain.RoleAdmin), fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret!"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrPasswordMismatch)
	assert.ErrorIs(t, ComparePassword("not-a-bcrypt-hash", "s3cret!"), ErrPasswordMismatch)
}

func TestPasswordLengthRules(t *testing.T) {
	_, err := HashPassword("pw", 4)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = HashPassword(strings.Repeat("a", 73), 4)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	assert.NoError(t, CheckPassword("ñandú!"))
	assert.ErrorIs(t, CheckPassword("ñandú"), ErrPasswordTooShort)
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	require.NoError(t, err)

	assert.False(t, NeedsRehash(hash, 4))
	assert.True(t, NeedsRehash(hash, 5))
	assert.True(t, NeedsRehash(hash, 0), "zero cost means bcrypt default")
	assert.False(t, NeedsRehash("garbage", 5))
}
