package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/starterapi/internal/model"
)

// Claims はモバイルクライアント向けBearerトークンのクレーム。
// Subjectにユーザーを、IDにセッションIDを格納する。
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
}

// GenerateToken はセッションをHS256署名のJWTに変換する。
// 有効期限はセッションのExpiresAtを使用する。
func GenerateToken(session model.Session, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.UserID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         session.Email,
		EmailVerified: session.EmailVerified,
		Role:          string(session.Role),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// TokenSessionProvider はAuthorization: Bearerヘッダーのトークンからセッションを解決する。
type TokenSessionProvider struct {
	secretKey []byte
}

// NewTokenSessionProvider はTokenSessionProviderを生成する。
func NewTokenSessionProvider(secretKey []byte) *TokenSessionProvider {
	return &TokenSessionProvider{secretKey: secretKey}
}

// Name はメトリクス・ログ用のプロバイダ名を返す。
func (p *TokenSessionProvider) Name() string { return "bearer_token" }

// SessionFromRequest はBearerトークンを検証してセッションを返す。
// ヘッダーがない場合と期限切れの場合はnil, nil、改ざん・不正形式はエラーを返す。
func (p *TokenSessionProvider) SessionFromRequest(ctx context.Context, r *http.Request) (*model.Session, error) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid bearer token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid bearer token: missing subject")
	}

	return &model.Session{
		ID:            claims.ID,
		UserID:        claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Role:          model.ParseRole(claims.Role),
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
