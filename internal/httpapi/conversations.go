package httpapi

import (
	"net/http"
	"strconv"

	"chat-pipeline/internal/audit"

	"github.com/gin-gonic/gin"
)

type manualReplyRequest struct {
	Text string `json:"text"`
}

// ManualReply sends an operator's message and silences the bot for the phone.
func (h Handlers) ManualReply(c *gin.Context) {
	if h.Pipeline == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pipeline not configured"})
		return
	}
	var req manualReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	phone := c.Param("phone")
	res, err := h.Pipeline.ManualReply(c.Request.Context(), phone, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, func(s *audit.Service, a audit.Actor) error {
		return s.LogManualReply(c.Request.Context(), a, phone, req.Text)
	})
	c.JSON(http.StatusOK, res)
}

func (h Handlers) ConversationHistory(c *gin.Context) {
	if h.Pipeline == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pipeline not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	turns, err := h.Pipeline.History(c.Request.Context(), c.Param("phone"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": turns})
}
