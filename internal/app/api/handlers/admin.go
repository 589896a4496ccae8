package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	subsvc "github.com/fatflowers/affiliate/internal/app/service/subscription"
	models "github.com/fatflowers/affiliate/internal/models"
	"github.com/fatflowers/affiliate/pkg/response"
)

// RegisterAdminRoutes wires the operational lookup endpoints. These are
// read-only views over the store; all state changes go through the jobs.
func RegisterAdminRoutes(r gin.IRouter, subs *subsvc.Service) {
	r.GET("/subscriptions/status_counts", statusCounts(subs))
	r.GET("/subscriptions/:id", subscriptionByID(subs))
	r.GET("/subscriptions", subscriptionByCorrelationID(subs))
}

func subscriptionByID(subs *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := subs.FetchOneByID(c.Request.Context(), c.Param("id"))
		renderSubscription(c, sub, err)
	}
}

// subscriptionByCorrelationID looks a record up by one of the externally
// supplied correlation strings: ?flow_id= or ?subscription_id=.
func subscriptionByCorrelationID(subs *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if flowID := c.Query("flow_id"); flowID != "" {
			sub, err := subs.FetchOneByFlowID(ctx, flowID)
			renderSubscription(c, sub, err)
			return
		}
		if subscriptionID := c.Query("subscription_id"); subscriptionID != "" {
			sub, err := subs.FetchOneBySubscriptionID(ctx, subscriptionID)
			renderSubscription(c, sub, err)
			return
		}
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, "flow_id or subscription_id required"))
	}
}

func renderSubscription(c *gin.Context, sub *models.Subscription, err error) {
	if errors.Is(err, subsvc.ErrNotFound) {
		c.JSON(http.StatusNotFound, response.ErrorT(response.APIResponseCodeNotFound, "subscription not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(sub))
}

func statusCounts(subs *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := subs.StatusCounts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
			return
		}
		view := make(map[string]int64, len(counts))
		for status, n := range counts {
			view[status.String()] = n
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}
