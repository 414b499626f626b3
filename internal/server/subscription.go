package server

import (
	"errors"
	"net/http"

	subscriptiondomain "github.com/denhac/memberbridge/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

// ListCustomerSubscriptions returns the customer's subscriptions. An unknown
// customer yields an empty list since subscriptions only reference customers.
func (s *Server) ListCustomerSubscriptions(c *gin.Context) {
	id, err := parseExternalID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subs, err := s.subscriptionSvc.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subs})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id, err := parseExternalID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.GetByExternalID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func isSubscriptionValidationError(err error) bool {
	return errors.Is(err, subscriptiondomain.ErrInvalidID)
}
