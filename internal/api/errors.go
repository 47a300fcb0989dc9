package api

import (
	"errors"
	"net/http"

	"github.com/devservers/devserversd/internal/apierror"
	"github.com/gin-gonic/gin"
)

// errorMiddleware is the single place HTTP status codes are derived
// from apierror.Kind. Handlers call c.Error(err) and return; they
// never write the error response themselves.
func (s *Server) errorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, msg := statusFor(err)
		s.Log.Error("api: request failed", "path", c.FullPath(), "request_id", c.GetString("requestID"), "error", err)
		c.JSON(status, errorResponse{Error: msg})
	}
}

func statusFor(err error) (int, string) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apierror.KindValidation, apierror.KindConflict:
			return http.StatusBadRequest, apiErr.Error()
		case apierror.KindNotFound:
			return http.StatusNotFound, apiErr.Error()
		case apierror.KindRegistry, apierror.KindSupervisor:
			return http.StatusInternalServerError, apiErr.Error()
		}
	}
	return http.StatusInternalServerError, err.Error()
}
