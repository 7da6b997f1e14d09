package handler

import (
	"solicitudes/pkg/apperr"
	"solicitudes/pkg/response"

	"github.com/gin-gonic/gin"
)

// abortWithError maps a service error onto the response envelope. Internal
// failure detail is scrubbed outside development mode.
func abortWithError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Database(err)
	}

	message := e.Message
	if e.Kind == apperr.KindDatabase && gin.Mode() == gin.ReleaseMode {
		message = "internal server error"
	} else if e.Kind == apperr.KindDatabase && e.Err != nil {
		message = e.Error()
	}

	if e.Kind == apperr.KindValidation && len(e.Fields) > 0 {
		c.JSON(e.HTTPStatus(), response.ValidationError(e.HTTPStatus(), e.Code(), message, e.Fields))
		return
	}
	c.JSON(e.HTTPStatus(), response.Error(e.HTTPStatus(), e.Code(), message))
}
