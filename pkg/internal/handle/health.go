package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/types"
)

const (
	timeout        = 2 * time.Second
	healthProbeKey = "fp:health:probe"
)

func healthy(c *gin.Context, component string) {
	c.JSON(http.StatusOK, types.HealthResponse{Component: component, Status: "ok"})
}

func unhealthy(c *gin.Context, component, msg string) {
	c.JSON(http.StatusServiceUnavailable, types.HealthResponse{Component: component, Status: "unhealthy", Error: msg})
}

// HealthDB 数据库健康检查.
//
//	@Summary	数据库健康
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/health/db [get]
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		unhealthy(c, "db", "db client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := dbc.HealthCheck(ctx); err != nil {
		unhealthy(c, "db", err.Error())
		return
	}

	healthy(c, "db")
}

// HealthS3 对象存储健康检查，未启用归档时返回 503.
//
//	@Summary	对象存储健康
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/health/s3 [get]
func HealthS3(c *gin.Context) {
	s3c := ctxPkg.GetS3Client(c.Request.Context())
	if s3c == nil || s3c.Client == nil {
		unhealthy(c, "s3", "s3 disabled")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := s3c.HealthCheck(ctx); err != nil {
		unhealthy(c, "s3", err.Error())
		return
	}

	healthy(c, "s3")
}

// HealthMQ 消息总线健康检查.
//
//	@Summary	消息总线健康
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/health/mq [get]
func HealthMQ(c *gin.Context) {
	mqc := ctxPkg.GetMQClient(c.Request.Context())
	if mqc == nil {
		unhealthy(c, "mq", "mq client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := mqc.HealthCheck(ctx); err != nil {
		unhealthy(c, "mq", err.Error())
		return
	}

	healthy(c, "mq")
}

// HealthKV 键值存储健康检查，写入并读回一个短期键.
//
//	@Summary	键值存储健康
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/health/kv [get]
func HealthKV(c *gin.Context) {
	kvc := ctxPkg.GetKVClient(c.Request.Context())
	if kvc == nil || kvc.KVStore == nil {
		unhealthy(c, "kv", "kv client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := kvc.Set(ctx, healthProbeKey, []byte("ok"), 5*time.Second); err != nil {
		unhealthy(c, "kv", err.Error())
		return
	}

	if _, err := kvc.Get(ctx, healthProbeKey); err != nil {
		unhealthy(c, "kv", err.Error())
		return
	}

	healthy(c, "kv")
}
