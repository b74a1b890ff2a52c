// Package service 实现账号、上传与查询等业务逻辑.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yeisme/fileparser/pkg/auth"
	"github.com/yeisme/fileparser/pkg/configs"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/internal/types"
	"github.com/yeisme/fileparser/pkg/rule"
)

const msgInvalidCredentials = "Invalid credentials"

// AuthService 用户注册、登录与令牌校验.
type AuthService struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	cost   int
	log    zerolog.Logger
}

// NewAuthService 创建 AuthService.
func NewAuthService(db *gorm.DB, tokens *auth.TokenManager, cfg configs.AuthConfig, log zerolog.Logger) *AuthService {
	return &AuthService{db: db, tokens: tokens, cost: cfg.BcryptCost, log: log}
}

// Register 创建一个活跃的普通用户.
func (s *AuthService) Register(ctx context.Context, req types.RegisterRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email == "" {
			req.Email = nil
		} else {
			req.Email = &email
		}
	}

	if err := rule.ValidateStruct(req); err != nil {
		return nil, Invalid(err)
	}

	dbx := s.db.WithContext(ctx)

	var n int64
	if err := dbx.Model(&model.User{}).Where("username = ?", req.Username).Count(&n).Error; err != nil {
		return nil, err
	}

	if n > 0 {
		return nil, fmt.Errorf("%w: username already registered", ErrConflict)
	}

	if req.Email != nil {
		if err := dbx.Model(&model.User{}).Where("email = ?", *req.Email).Count(&n).Error; err != nil {
			return nil, err
		}

		if n > 0 {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
	}

	hash, err := auth.HashPassword(req.Password, s.cost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       strings.TrimSpace(req.FullName),
		HashedPassword: hash,
		IsActive:       true,
	}

	if err := dbx.Create(user).Error; err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}

		return nil, err
	}

	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	return user, nil
}

// Authenticate 校验用户名密码并签发令牌对.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (auth.Pair, error) {
	var user model.User

	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.Pair{}, fmt.Errorf("%w: %s", ErrUnauthorized, msgInvalidCredentials)
	}

	if err != nil {
		return auth.Pair{}, err
	}

	if !auth.CheckPassword(user.HashedPassword, password) {
		return auth.Pair{}, fmt.Errorf("%w: %s", ErrUnauthorized, msgInvalidCredentials)
	}

	if !user.IsActive {
		return auth.Pair{}, fmt.Errorf("%w: inactive user", ErrForbidden)
	}

	return s.tokens.IssuePair(user.ID, user.Username)
}

// Verify 校验访问令牌并返回调用者身份.
func (s *AuthService) Verify(ctx context.Context, token string) (ctxPkg.Identity, error) {
	user, err := s.userFromToken(ctx, token, auth.TokenTypeAccess, "Could not validate credentials")
	if err != nil {
		return ctxPkg.Identity{}, err
	}

	if !user.IsActive {
		return ctxPkg.Identity{}, fmt.Errorf("%w: inactive user", ErrForbidden)
	}

	return ctxPkg.Identity{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}, nil
}

// Refresh 用刷新令牌换取新的令牌对.
func (s *AuthService) Refresh(ctx context.Context, token string) (auth.Pair, error) {
	user, err := s.userFromToken(ctx, token, auth.TokenTypeRefresh, "Invalid refresh token")
	if err != nil {
		return auth.Pair{}, err
	}

	if !user.IsActive {
		return auth.Pair{}, fmt.Errorf("%w: inactive user", ErrUnauthorized)
	}

	return s.tokens.IssuePair(user.ID, user.Username)
}

func (s *AuthService) userFromToken(ctx context.Context, token string, typ auth.TokenType, msg string) (*model.User, error) {
	claims, err := s.tokens.Verify(token, typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}

	user, err := s.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: User not found", ErrUnauthorized)
	}

	return user, err
}

// GetUser 按 id 查询用户.
func (s *AuthService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User

	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ListUsers 按 id 升序分页.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	limit, offset = clampPage(limit, offset)

	dbx := s.db.WithContext(ctx).Model(&model.User{})

	var total int64
	if err := dbx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	if err := dbx.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Promote 授予管理员权限，仅命令行使用.
func (s *AuthService) Promote(ctx context.Context, username string) (*model.User, error) {
	var user model.User

	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, username)
	}

	if err != nil {
		return nil, err
	}

	if user.IsAdmin {
		return &user, nil
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("is_admin", true).Error; err != nil {
		return nil, err
	}

	user.IsAdmin = true

	s.log.Info().Str("username", username).Msg("user promoted to admin")

	return &user, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = types.DefaultLimit
	}

	if limit > types.MaxLimit {
		limit = types.MaxLimit
	}

	return limit, max(offset, 0)
}
