package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/starterapi/internal/model"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func TestCookieSessionProvider_ValidCookie(t *testing.T) {
	p := NewCookieSessionProvider(&mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{ID: id, UserID: "user-123"}, nil
			}
			return nil, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session-id"})

	got, err := p.SessionFromRequest(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-123", got.UserID)
}

func TestCookieSessionProvider_NoCookie_NoLookup(t *testing.T) {
	called := false
	p := NewCookieSessionProvider(&mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			called = true
			return nil, nil
		},
	})

	got, err := p.SessionFromRequest(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, called)
}

func TestCookieSessionProvider_FinderError_IsReturned(t *testing.T) {
	p := NewCookieSessionProvider(&mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "x"})

	_, err := p.SessionFromRequest(context.Background(), req)

	assert.Error(t, err)
}

var testSecret = []byte("test-session-secret-32bytes-long!")

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestTokenSessionProvider_RoundTrip(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := GenerateToken(model.Session{
		ID: "sess-1", UserID: "user-1", Email: "a@example.com", EmailVerified: true, Role: model.RoleAdmin, ExpiresAt: expires,
	}, testSecret)
	require.NoError(t, err)

	got, err := NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), bearerRequest(token))

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "a@example.com", got.Email)
	assert.True(t, got.EmailVerified)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.True(t, got.ExpiresAt.Equal(expires))
}

func TestTokenSessionProvider_NoHeader(t *testing.T) {
	got, err := NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenSessionProvider_NonBearerScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	got, err := NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), req)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenSessionProvider_Expired_IsAnonymousWithoutError(t *testing.T) {
	token, err := GenerateToken(model.Session{ID: "s", UserID: "u", ExpiresAt: time.Now().Add(-time.Minute)}, testSecret)
	require.NoError(t, err)

	got, err := NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), bearerRequest(token))

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenSessionProvider_WrongSecret_IsError(t *testing.T) {
	token, err := GenerateToken(model.Session{ID: "s", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}, []byte("other-secret"))
	require.NoError(t, err)

	got, err := NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), bearerRequest(token))

	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestTokenSessionProvider_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	got, err := NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), bearerRequest(raw))

	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestTokenSessionProvider_MissingExpiry_IsError(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	raw, err := token.SignedString(testSecret)
	require.NoError(t, err)

	_, err = NewTokenSessionProvider(testSecret).SessionFromRequest(context.Background(), bearerRequest(raw))

	assert.Error(t, err)
}
