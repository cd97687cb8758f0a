package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "social-backend/backend/pkg/errors"
)

const internalErrorMessage = "Erro interno do servidor"

// respondError writes err as {"error": message} with the status its type maps to
func (h *handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("error_type", string(apperrors.TypeOf(err))),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": internalErrorMessage})
		return
	}

	message := err.Error()
	if base, ok := apperrors.AsBase(err); ok {
		message = base.Message
	}
	c.JSON(status, gin.H{"error": message})
}

func isPartialWrite(err error) bool {
	var partial *apperrors.ErrPartialWriteFailure
	return errors.As(err, &partial)
}
