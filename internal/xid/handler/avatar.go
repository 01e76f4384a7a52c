package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/xid/service"
)

const avatarCacheControl = "max-age=680400"

const notFoundPage = `<html> <head> <meta charset=UTF-8> <style> body { margin: 0; padding: 0; ` +
	`width: 100%; height: 100%; color: #B0BEC5; display: table; font-weight: 100; font-family: sans-serif; } ` +
	`.container { text-align: center; display: table-cell; vertical-align: middle; } ` +
	`.content { text-align: center; display: inline-block; } .title { font-size: 42px; margin-bottom: 40px; } ` +
	`</style> </head> <body> <div class="container"> <div class="content"> ` +
	`<div class="title">404 NOT FOUND</div> </div> </div> </body> </html>`

// AssetHandler serves the avatar image and the fallback page for every
// unknown path.
type AssetHandler struct {
	svc *service.XidService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(svc *service.XidService) *AssetHandler {
	return &AssetHandler{svc: svc}
}

// Register mounts GET /avatar/:name and the NoRoute page on r.
func (h *AssetHandler) Register(r *gin.Engine) {
	r.GET("/avatar/:name", h.Avatar)
	r.NoRoute(h.NotFound)
}

// Avatar handles GET /avatar/:name. Any name serves the one avatar.
func (h *AssetHandler) Avatar(c *gin.Context) {
	a, ok := h.svc.Avatar()
	if !ok {
		h.NotFound(c)
		return
	}
	c.Header("Cache-Control", avatarCacheControl)
	c.Data(http.StatusOK, a.Type+";charset=utf-8", a.Data)
}

// NotFound writes the fixed 404 page.
func (h *AssetHandler) NotFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "text/html", []byte(notFoundPage))
}
