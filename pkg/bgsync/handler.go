package bgsync

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type syncRequest struct {
	Tag string `json:"tag" binding:"required"`
}

type syncResponse struct {
	Tag     string   `json:"tag"`
	Synced  []string `json:"synced"`
	Failed  []string `json:"failed"`
	Dropped []string `json:"dropped"`
	Skipped []string `json:"skipped"`
}

// Handler fires a tag on request and returns the replay report.
func (s *Scheduler) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		report, err := s.Fire(c.Request.Context(), req.Tag)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, syncResponse{
			Tag:     req.Tag,
			Synced:  nonNil(report.Synced),
			Failed:  nonNil(report.Failed),
			Dropped: nonNil(report.Dropped),
			Skipped: nonNil(report.Skipped),
		})
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
