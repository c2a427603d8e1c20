package http

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Mount registers every handler at the root and, when basePath is set,
// again under basePath so deployments behind a path-routing proxy see the
// same API.
func Mount(router *gin.Engine, basePath string, handlers ...RouteRegistrar) {
	for _, h := range handlers {
		h.SetupRoutes(router)
	}

	basePath = strings.TrimRight(basePath, "/")
	if basePath == "" {
		return
	}
	group := router.Group(basePath)
	for _, h := range handlers {
		h.SetupRoutes(group)
	}
}
