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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all chat routes with the router.
//
// Description:
//
//	Registers the /v1/chat/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST   /v1/chat/ask - Ask a question (text, table, or chart response)
//	GET    /v1/chat/history/:session_id - Get conversation history
//	DELETE /v1/chat/history/:session_id - Clear conversation history
//	GET    /v1/chat/stats - Cache and session statistics
//	GET    /v1/chat/health - Health check (liveness + component statuses)
//	GET    /v1/chat/ready - Readiness check (strict)
//
// Example:
//
//	service := datachat.NewService(router, sessions, cache, checks, logger)
//	handlers := datachat.NewHandlers(service)
//
//	v1 := engine.Group("/v1")
//	datachat.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	chat := rg.Group("/chat")
	{
		chat.POST("/ask", handlers.HandleAsk)

		// Conversation memory
		chat.GET("/history/:session_id", handlers.HandleHistory)
		chat.DELETE("/history/:session_id", handlers.HandleClearHistory)

		// Operations
		chat.GET("/stats", handlers.HandleStats)
		chat.GET("/health", handlers.HandleHealth)
		chat.GET("/ready", handlers.HandleReady)
	}
}
