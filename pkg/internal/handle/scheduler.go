package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/internal/types"
	"github.com/yeisme/fileparser/pkg/middleware"
	"github.com/yeisme/fileparser/pkg/scheduler"
)

// SchedulerJobs 返回所有调度器任务信息.
//
//	@Summary	定时任务列表
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	map[string][]scheduler.JobInfo
//	@Failure	403	{object}	types.ErrorResponse
//	@Router		/admin/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "scheduler not running"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerRunJob 立即执行一次指定任务.
//
//	@Summary	立即执行任务
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		name	path		string	true	"任务名称"
//	@Success	202		{object}	scheduler.JobInfo
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/admin/scheduler/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "scheduler not running"})
		return
	}

	name := c.Param("name")
	if err := sched.RunNow(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrJobNotFound) {
			status = http.StatusNotFound
		}

		c.JSON(status, types.ErrorResponse{Error: err.Error()})

		return
	}

	info, _ := sched.GetJobInfoByName(name)
	c.JSON(http.StatusAccepted, info)
}
