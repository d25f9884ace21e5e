package push

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type clickRequest struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

// PushHandler accepts a push payload. An empty body shows the defaults.
func (s *Service) PushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var p Payload
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&p); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		n, err := s.Show(c.Request.Context(), p)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, n)
	}
}

// ClickHandler resolves a notification action.
func (s *Service) ClickHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clickRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := s.Click(c.Request.Context(), req.Action, req.URL)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
