// Package handler serves the XID HTTP API.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/auth"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
	"github.com/jmerrifield20/NexusXID/internal/xid/service"
	"go.uber.org/zap"
)

const defaultPageSize = 20

// XidHandler handles the /xid routes.
type XidHandler struct {
	svc         *service.XidService
	tokens      *auth.TokenIssuer
	callerLimit gin.HandlerFunc // nil = no per-principal limit
	logger      *zap.Logger
}

// NewXidHandler creates a new XidHandler. tokens verifies caller principal
// tokens on every mutating route.
func NewXidHandler(svc *service.XidService, tokens *auth.TokenIssuer, logger *zap.Logger) *XidHandler {
	return &XidHandler{svc: svc, tokens: tokens, logger: logger}
}

// SetCallerLimit installs mw on the authenticated routes after the token
// check, typically RateLimiter keyed by ByCaller.
func (h *XidHandler) SetCallerLimit(mw gin.HandlerFunc) {
	h.callerLimit = mw
}

// Register mounts the XID routes on rg.
func (h *XidHandler) Register(rg *gin.RouterGroup) {
	x := rg.Group("/xid")
	{
		x.GET("", h.GetXid)
		x.GET("/main", h.GetMain)
		x.GET("/version", h.Version)
		x.GET("/store/:type/size", h.ContentSize)
		x.GET("/store/:type", h.ContentPage)
		x.POST("/store/lookup", h.ContentLookup)
	}

	authed := x.Group("", auth.RequirePrincipal(h.tokens))
	if h.callerLimit != nil {
		authed.Use(h.callerLimit)
	}
	{
		authed.PATCH("", h.SetProfile)
		authed.POST("/main", h.ChangeMain)
		authed.DELETE("/ids", h.Unbind)
		authed.POST("/verify", h.SubmitAttestation)
		authed.POST("/host-binding", h.RequestHostBinding)
		authed.POST("/host-binding/confirm", h.ConfirmHostBinding)
		authed.PUT("/avatar", h.UploadAvatar)
		authed.POST("/store", h.UploadContent)
		authed.DELETE("/store/:type/:uuid", h.DeleteContent)
		authed.POST("/store/:type/:uuid/mint", h.MintContent)
	}
}

// GetXid handles GET /xid.
func (h *XidHandler) GetXid(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetXid())
}

// GetMain handles GET /xid/main.
func (h *XidHandler) GetMain(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetMainID())
}

// Version handles GET /xid/version.
func (h *XidHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.svc.Version()})
}

// ChangeMain handles POST /xid/main.
func (h *XidHandler) ChangeMain(c *gin.Context) {
	var req model.SimpleID
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	id, err := h.svc.ChangeMain(c.Request.Context(), caller, req.AsIdentity())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

// Unbind handles DELETE /xid/ids.
//
//	Request: {"platform": "...", "identity": "..."}
func (h *XidHandler) Unbind(c *gin.Context) {
	var req model.SimpleID
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.Unbind(c.Request.Context(), caller, req.AsIdentity()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitAttestation handles POST /xid/verify.
//
//	Request:  {"msg": "<payload json>", "sig": "<base64>"}
//	Response: 201 bound identity
func (h *XidHandler) SubmitAttestation(c *gin.Context) {
	var env attest.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": attest.CodeMsgDecode})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	id, err := h.svc.SubmitAttestation(c.Request.Context(), caller, env)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, id)
}

// RequestHostBinding handles POST /xid/host-binding.
func (h *XidHandler) RequestHostBinding(c *gin.Context) {
	var req model.HostBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.RequestHostBinding(c.Request.Context(), caller, req.Principal); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pending": req.Principal})
}

// ConfirmHostBinding handles POST /xid/host-binding/confirm. The caller is
// the principal being bound, not the owner.
func (h *XidHandler) ConfirmHostBinding(c *gin.Context) {
	caller, _ := auth.CallerFromCtx(c)

	id, err := h.svc.ConfirmHostBinding(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, id)
}

// SetProfile handles PATCH /xid.
func (h *XidHandler) SetProfile(c *gin.Context) {
	var req model.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.SetProfile(caller, req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.GetXid())
}

// UploadAvatar handles PUT /xid/avatar. The body is the raw image and the
// Content-Type header is stored as the image type.
func (h *XidHandler) UploadAvatar(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read avatar: " + err.Error()})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.UploadAvatar(caller, model.Avatar{Data: data, Type: c.ContentType()}); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ContentSize handles GET /xid/store/:type/size.
func (h *XidHandler) ContentSize(c *gin.Context) {
	t, err := model.ParseContentType(c.Param("type"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	n, err := h.svc.ContentSize(t)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"size": n})
}

// ContentPage handles GET /xid/store/:type?start=&offset=. offset is the
// page length.
func (h *XidHandler) ContentPage(c *gin.Context) {
	t, err := model.ParseContentType(c.Param("type"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	start, err := strconv.Atoi(c.DefaultQuery("start", "0"))
	if err != nil || start < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	items, err := h.svc.ContentPage(t, start, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "start": start, "count": len(items)})
}

// ContentLookup handles POST /xid/store/lookup.
//
//	Request: [{"content_type": "twitter", "uuid": "..."}, ...]
func (h *XidHandler) ContentLookup(c *gin.Context) {
	var refs []model.ContentUUID
	if err := c.ShouldBindJSON(&refs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.svc.ContentLookup(refs)})
}

// UploadContent handles POST /xid/store.
func (h *XidHandler) UploadContent(c *gin.Context) {
	var req model.StoreArg
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.UploadContent(caller, req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusCreated)
}

func contentRef(c *gin.Context) (model.ContentUUID, error) {
	t, err := model.ParseContentType(c.Param("type"))
	if err != nil {
		return model.ContentUUID{}, err
	}
	return model.ContentUUID{ContentType: t, UUID: c.Param("uuid")}, nil
}

// DeleteContent handles DELETE /xid/store/:type/:uuid.
func (h *XidHandler) DeleteContent(c *gin.Context) {
	ref, err := contentRef(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.DeleteContent(caller, ref); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MintContent handles POST /xid/store/:type/:uuid/mint.
func (h *XidHandler) MintContent(c *gin.Context) {
	ref, err := contentRef(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	caller, _ := auth.CallerFromCtx(c)

	if err := h.svc.MintContent(caller, ref); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
