package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/scheduler"
)

type JobsHandler struct {
	scheduler *scheduler.Scheduler
	log       *logger.Logger
}

func NewJobsHandler(scheduler *scheduler.Scheduler, log *logger.Logger) *JobsHandler {
	return &JobsHandler{scheduler: scheduler, log: log}
}

// @Summary List scheduled jobs
// @Description List every registered job with its schedule and last run outcome
// @Tags Jobs
// @Produce json
// @Success 200 {object} dto.JobListResponse
// @Router /jobs [get]
func (h *JobsHandler) ListJobs(c *gin.Context) {
	statuses := h.scheduler.Statuses()

	resp := dto.JobListResponse{Jobs: make([]dto.JobStatusResponse, 0, len(statuses))}
	for _, s := range statuses {
		resp.Jobs = append(resp.Jobs, dto.JobStatusResponse{
			Name:       s.Name,
			Schedule:   s.Schedule,
			Enabled:    s.Enabled,
			Running:    s.Running,
			LastRunAt:  s.LastRunAt,
			LastStatus: s.LastStatus,
			LastError:  s.LastError,
			NextRunAt:  s.NextRunAt,
		})
	}

	c.JSON(http.StatusOK, resp)
}
