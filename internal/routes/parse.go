package routes

import (
	"github.com/gin-gonic/gin"

	"plainapi/internal/handlers"
)

type ParseRoutes struct {
	handler *handlers.ParseHandler
}

func NewParseRoutes(handler *handlers.ParseHandler) *ParseRoutes {
	return &ParseRoutes{handler: handler}
}

func (r *ParseRoutes) RegisterRoutes(router *gin.RouterGroup) {
	v1 := router.Group("/v1")
	{
		v1.POST("/tokens", r.handler.Tokens)
		v1.POST("/schema", r.handler.Schema)
		v1.POST("/shape", r.handler.Shape)
		v1.POST("/block", r.handler.Block)
		v1.POST("/endpoints", r.handler.Endpoints)
	}
}
