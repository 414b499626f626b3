package server

import (
	"errors"
	"net/http"
	"strings"

	customerdomain "github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		IsMember string `form:"is_member"`
		Email    string `form:"email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isMember, err := parseOptionalBool(query.IsMember)
	if err != nil {
		AbortWithError(c, newValidationError("is_member", "invalid_is_member", "invalid is_member"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		IsMember:  isMember,
		Email:     strings.TrimSpace(query.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id, err := parseExternalID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.customerSvc.GetByExternalID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isCustomerValidationError(err error) bool {
	return errors.Is(err, customerdomain.ErrInvalidID) ||
		errors.Is(err, customerdomain.ErrInvalidPageToken)
}
