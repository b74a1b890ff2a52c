package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

var features = []string{
	"User registration and JWT authentication",
	"CSV, Excel, PDF, JSON and text parsing",
	"Real-time progress over WebSocket",
	"Owner-scoped file queries and stats",
}

// Root 服务存活信息.
//
//	@Summary	服务存活
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	types.RootResponse
//	@Router		/ [get]
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, types.RootResponse{
		Success: true,
		Message: "File Parser CRUD API with Authentication is running!",
		Data: types.RootData{
			Name:     configs.AppName,
			Version:  configs.AppVersion,
			Features: features,
		},
	})
}
