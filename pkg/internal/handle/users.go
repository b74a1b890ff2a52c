package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yeisme/fileparser/pkg/internal/types"
)

// Me 当前用户.
//
//	@Summary	当前用户
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	types.UserResponse
//	@Failure	401	{object}	types.ErrorResponse
//	@Router		/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	user, err := h.deps.Auth.GetUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewUserResponse(user))
}

// ListUsers 用户列表，仅管理员.
//
//	@Summary	用户列表
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		limit	query		int	false	"每页数量"	minimum(1)	maximum(100)
//	@Param		offset	query		int	false	"偏移"
//	@Success	200		{object}	types.UserListResponse
//	@Failure	403		{object}	types.ErrorResponse
//	@Router		/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var req types.UserListRequest
	if err := bind(c, &req, binding.Query); err != nil {
		h.writeError(c, err)
		return
	}

	users, total, err := h.deps.Auth.ListUsers(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := types.UserListResponse{Users: make([]types.UserResponse, 0, len(users)), Total: total, Offset: max(req.Offset, 0)}
	resp.Limit = req.Limit
	if resp.Limit <= 0 {
		resp.Limit = types.DefaultLimit
	}

	for i := range users {
		resp.Users = append(resp.Users, types.NewUserResponse(&users[i]))
	}

	c.JSON(http.StatusOK, resp)
}
