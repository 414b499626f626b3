package server

import (
	"net/http"
	"strings"

	jobsdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListJobs(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	entityKey := ""
	if raw := strings.TrimSpace(c.Query("customer_id")); raw != "" {
		id, err := parseExternalID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
			return
		}
		entityKey = jobsdomain.CustomerEntityKey(id)
	}

	jobs, err := s.jobSvc.List(c.Request.Context(), jobsdomain.ListJobFilter{
		Status:    jobsdomain.Status(strings.TrimSpace(c.Query("status"))),
		EntityKey: entityKey,
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": jobs})
}

func isJobValidationError(err error) bool {
	return errorsIsAny(err, jobsdomain.ErrInvalidStatus)
}
