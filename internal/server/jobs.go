package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	"github.com/smallbiznis/crm/internal/scheduler"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/zap"
)

func (s *Server) ListJobRuns(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Job    string `form:"job"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.jobRunSvc.List(c.Request.Context(), jobrundomain.ListRequest{
		Job:       strings.TrimSpace(query.Job),
		Status:    strings.TrimSpace(query.Status),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RunJob triggers a job outside its schedule. A job that fails still answers
// 200 with the recorded run and its failed status.
func (s *Server) RunJob(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	run, err := s.scheduler.RunJob(c.Request.Context(), strings.TrimSpace(c.Param("name")), jobrundomain.TriggerManual)
	if err != nil {
		if run == nil || errors.Is(err, scheduler.ErrUnknownJob) || errors.Is(err, scheduler.ErrLeaseHeld) {
			AbortWithError(c, err)
			return
		}
		s.log.Warn("manual job run failed", zap.String("job", c.Param("name")), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}
