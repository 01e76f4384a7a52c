package attest

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the attestation verification API.
type Handler struct {
	attestor    *Attestor
	adminSecret string // empty = admin routes disabled
	logger      *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(a *Attestor, logger *zap.Logger) *Handler {
	return &Handler{attestor: a, logger: logger}
}

// SetAdminSecret enables the replay-guard admin routes behind X-Admin-Secret.
func (h *Handler) SetAdminSecret(secret string) {
	h.adminSecret = secret
}

// Register mounts the verification routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/verify", h.Verify)

	admin := rg.Group("/replay", h.requireAdmin())
	{
		admin.GET("", h.ReplayStatus)
		admin.POST("/reset", h.ResetReplay)
	}
}

// Verify handles POST /verify.
//
//	Request:  {"msg": "<payload json>", "sig": "<base64>"}
//	Response: 200 payload | 4xx {"error": "...", "code": "replay|verify|msg_decode|sig_decode"}
func (h *Handler) Verify(c *gin.Context) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": CodeMsgDecode})
		return
	}

	payload, err := h.attestor.Verify(c.Request.Context(), env)
	if err != nil {
		code := Code(err)
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, ErrReplay):
			status = http.StatusConflict
		case errors.Is(err, ErrMsgDecode), errors.Is(err, ErrSigDecode):
			status = http.StatusBadRequest
		case code == "":
			h.logger.Error("attestation verify", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}

	c.JSON(http.StatusOK, payload)
}

// ReplayStatus handles GET /replay — number of consumed uuids.
func (h *Handler) ReplayStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"consumed": h.attestor.Guard().Len()})
}

// ResetReplay handles POST /replay/reset — wipes the replay guard.
func (h *Handler) ResetReplay(c *gin.Context) {
	h.attestor.Guard().Reset()
	h.logger.Warn("replay guard reset by administrator", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminSecret == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		got := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin secret required"})
			return
		}
		c.Next()
	}
}
