package server

import (
	"net/http"
	"strings"

	auditdomain "github.com/denhac/memberbridge/internal/audit/domain"
	featuredomain "github.com/denhac/memberbridge/internal/feature/domain"
	"github.com/gin-gonic/gin"
)

type setFlagRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) ListFlags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.featureSvc.Snapshot()})
}

// SetFlag overrides a flag until the process restarts.
func (s *Server) SetFlag(c *gin.Context) {
	var req setFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "invalid_enabled", "enabled is required"))
		return
	}

	flag := featuredomain.Flag(strings.TrimSpace(c.Param("name")))
	if err := s.featureSvc.Set(c.Request.Context(), flag, *req.Enabled); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionFlagChanged,
		TargetType: "flag",
		TargetID:   string(flag),
		Metadata:   map[string]any{"enabled": *req.Enabled},
	})
	c.JSON(http.StatusOK, gin.H{"data": s.featureSvc.Snapshot()})
}
