// Package auth 提供令牌签发校验与密码哈希.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yeisme/fileparser/pkg/configs"
)

// TokenType 区分访问令牌与刷新令牌.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims 令牌载荷，sub 为用户 ID.
type Claims struct {
	Username  string    `json:"username"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID 解析 sub.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return uint(id), nil
}

// Pair 一次登录或刷新签发的令牌对.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn 访问令牌剩余秒数
	ExpiresIn int64
}

// TokenManager 签发与校验 HMAC 令牌.
type TokenManager struct {
	secret     []byte
	method     jwt.SigningMethod
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option TokenManager 选项.
type Option func(*TokenManager)

// WithClock 替换时钟.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

// NewTokenManager 按配置创建，SecretKey 为空时生成随机密钥.
func NewTokenManager(cfg configs.AuthConfig, opts ...Option) (*TokenManager, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
	}

	m := &TokenManager{
		secret:     secret,
		method:     method,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Issue 签发单个令牌.
func (m *TokenManager) Issue(userID uint, username string, typ TokenType) (string, time.Time, error) {
	ttl := m.accessTTL
	if typ == TokenTypeRefresh {
		ttl = m.refreshTTL
	}

	now := m.now()
	exp := now.Add(ttl)

	claims := Claims{
		Username:  username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, exp, nil
}

// IssuePair 签发访问令牌与刷新令牌.
func (m *TokenManager) IssuePair(userID uint, username string) (Pair, error) {
	access, _, err := m.Issue(userID, username, TokenTypeAccess)
	if err != nil {
		return Pair{}, err
	}

	refresh, _, err := m.Issue(userID, username, TokenTypeRefresh)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL / time.Second),
	}, nil
}

// Verify 校验签名、签发者、有效期与令牌类型.
func (m *TokenManager) Verify(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != want {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
