package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
	"go.uber.org/zap"
)

// Wire error codes. Clients map these back to typed errors.
const (
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeAlreadyBound    = "already_bound"
	CodeVerification    = "verification"
	CodePrincipal       = "principal"
	CodeFieldOutOfRange = "field_out_of_range"
	CodeUUIDRepeat      = "uuid_repeat"
	CodeUUIDNotExist    = "uuid_not_exist"
	CodeInvalidArgument = "invalid_argument"
	CodeUpstream        = "upstream"
	CodeInternal        = "internal"
)

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{model.ErrUnauthorized, http.StatusForbidden, CodeUnauthorized},
	{model.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{model.ErrAlreadyBound, http.StatusConflict, CodeAlreadyBound},
	// ErrPrincipal wraps ErrVerification and must be matched first.
	{model.ErrPrincipal, http.StatusUnprocessableEntity, CodePrincipal},
	{model.ErrVerification, http.StatusUnprocessableEntity, CodeVerification},
	{model.ErrFieldOutOfRange, http.StatusBadRequest, CodeFieldOutOfRange},
	{model.ErrUUIDRepeat, http.StatusConflict, CodeUUIDRepeat},
	{model.ErrUUIDNotExist, http.StatusNotFound, CodeUUIDNotExist},
	{model.ErrInvalidArgument, http.StatusBadRequest, CodeInvalidArgument},
	{attest.ErrReplay, http.StatusConflict, attest.CodeReplay},
	{attest.ErrVerify, http.StatusUnprocessableEntity, attest.CodeVerify},
	{attest.ErrMsgDecode, http.StatusBadRequest, attest.CodeMsgDecode},
	{attest.ErrSigDecode, http.StatusBadRequest, attest.CodeSigDecode},
}

// writeError translates a service error into a JSON error response.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			c.JSON(e.status, gin.H{"error": err.Error(), "code": e.code})
			return
		}
	}

	var ue *model.UpstreamError
	if errors.As(err, &ue) {
		logger.Warn("upstream failure", zap.String("op", ue.Op), zap.String("kind", ue.Kind), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": CodeUpstream, "kind": ue.Kind})
		return
	}

	logger.Error("unhandled service error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": CodeInternal})
}
