package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBatchSize = 500

type batchRequest struct {
	RegistrationIDs []string `json:"registrationIds" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMatchOne(c *gin.Context) {
	id := c.Param("id")
	result := s.matcher.MatchByID(c.Request.Context(), id)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.RegistrationIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "registrationIds must not be empty"})
		return
	}
	if len(req.RegistrationIDs) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d registrations per batch", maxBatchSize)})
		return
	}

	report := s.matcher.MatchBatchByID(c.Request.Context(), req.RegistrationIDs)
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleUnmatched(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxBatchSize)})
		return
	}
	save, err := strconv.ParseBool(c.DefaultQuery("save", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "save must be a boolean"})
		return
	}

	report, err := s.matcher.MatchUnmatched(c.Request.Context(), limit, save)
	if err != nil {
		s.log.Error("unmatched run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
