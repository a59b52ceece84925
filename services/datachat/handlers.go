// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datachat

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
	"github.com/AleutianAI/datachat/services/datachat/sqlgen"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handlers holds the HTTP handlers for the chat endpoints.
type Handlers struct {
	service *Service
}

// NewHandlers creates a Handlers bound to the service.
func NewHandlers(service *Service) *Handlers {
	if service == nil {
		panic("datachat.NewHandlers: service must not be nil")
	}
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleAsk handles POST /v1/chat/ask.
//
// Description:
//
//	Runs one question through the gateway pipeline and returns the
//	response in the resolved mode (text, table, or chart reference).
//
// Response:
//
//	200 OK: AskResponse
//	400 Bad Request: empty message, malformed body, or unsafe generated SQL
//	500 Internal Server Error: no response could be produced
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleAsk(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAsk")

	var req datatypes.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	resp, err := h.service.router.Ask(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, sqlgen.ErrUnsafeSQL) {
			logger.Warn("request rejected by sql safety gate")
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "the generated query was rejected for safety reasons",
				Code:  "UNSAFE_SQL",
			})
			return
		}
		logger.Error("ask failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "chat processing failed",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHistory handles GET /v1/chat/history/:session_id.
func (h *Handlers) HandleHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	turns, err := h.service.sessions.History(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to read history",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   turns,
	})
}

// HandleClearHistory handles DELETE /v1/chat/history/:session_id. Clearing
// an unknown session reports not_found rather than an error.
func (h *Handlers) HandleClearHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	cleared, err := h.service.sessions.Clear(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to clear history",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	status := "cleared"
	if !cleared {
		status = "not_found"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Conversation history %s for session %s", status, sessionID),
	})
}

// HandleStats handles GET /v1/chat/stats: cache and session statistics.
func (h *Handlers) HandleStats(c *gin.Context) {
	cacheStats := h.service.cache.Stats()

	sessionStats, err := h.service.sessions.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to read session stats",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "operational",
		"cache":         cacheStats,
		"session_stats": sessionStats,
		"features": []string{
			"auto_source_detection",
			"dynamic_mode_detection",
			"query_caching",
			"pattern_learning",
			"schema_awareness",
			"conversation_memory",
			"time_filtering",
			"greeting_detection",
			"limit_clause_enforcement",
		},
	})
}

// HandleHealth handles GET /v1/chat/health. Liveness plus best-effort
// component statuses; always 200 while the process can serve.
func (h *Handlers) HandleHealth(c *gin.Context) {
	components, healthy := h.service.checkAll(c.Request.Context())

	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"components": components,
	})
}

// HandleReady handles GET /v1/chat/ready. Strict readiness: 503 until every
// registered component answers its probe.
func (h *Handlers) HandleReady(c *gin.Context) {
	components, healthy := h.service.checkAll(c.Request.Context())
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
