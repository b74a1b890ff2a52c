package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yeisme/fileparser/pkg/auth"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

// Register 注册用户.
//
//	@Summary	注册
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.RegisterRequest	true	"注册信息"
//	@Success	201		{object}	types.UserResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	409		{object}	types.ErrorResponse
//	@Router		/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := bind(c, &req, binding.JSON); err != nil {
		h.writeError(c, err)
		return
	}

	user, err := h.deps.Auth.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.NewUserResponse(user))
}

// Login 用户名密码登录，支持 JSON 与表单.
//
//	@Summary	登录
//	@Tags		auth
//	@Accept		json,x-www-form-urlencoded
//	@Produce	json
//	@Param		body	body		types.LoginRequest	true	"凭据"
//	@Success	200		{object}	types.TokenResponse
//	@Failure	401		{object}	types.ErrorResponse
//	@Failure	403		{object}	types.ErrorResponse
//	@Router		/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := bind(c, &req, nil); err != nil {
		h.writeError(c, err)
		return
	}

	pair, err := h.deps.Auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.Header("WWW-Authenticate", "Bearer")
		h.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, tokenResponse(pair))
}

// Refresh 刷新令牌.
//
//	@Summary	刷新令牌
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.RefreshRequest	true	"刷新令牌"
//	@Success	200		{object}	types.TokenResponse
//	@Failure	401		{object}	types.ErrorResponse
//	@Router		/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req types.RefreshRequest
	if err := bind(c, &req, nil); err != nil {
		h.writeError(c, err)
		return
	}

	pair, err := h.deps.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse(pair))
}

func tokenResponse(p auth.Pair) types.TokenResponse {
	return types.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    p.ExpiresIn,
	}
}
