package handlers

import (
	"errors"
	"net/http"

	"livequiz/middleware"
	"livequiz/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var statusByCode = map[services.ErrorCode]int{
	services.CodeNotFound:         http.StatusNotFound,
	services.CodeNoQuestion:       http.StatusNotFound,
	services.CodeNoExplanation:    http.StatusNotFound,
	services.CodeInvalidState:     http.StatusBadRequest,
	services.CodeInvalidPayload:   http.StatusBadRequest,
	services.CodeUnauthorized:     http.StatusUnauthorized,
	services.CodeFlowConflict:     http.StatusConflict,
	services.CodeNameTaken:        http.StatusConflict,
	services.CodeUpdateFailed:     http.StatusInternalServerError,
	services.CodeFlowUpdateFailed: http.StatusInternalServerError,
	services.CodeServerError:      http.StatusInternalServerError,
}

// writeError renders err as {"error", "message", "requestId"}. Details of
// unexpected failures are logged, not returned.
func writeError(c *gin.Context, err error) {
	code := services.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "internal server error"
	var svcErr *services.Error
	if errors.As(err, &svcErr) && code != services.CodeServerError {
		message = svcErr.Message
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestID(c)).
			Msg("request failed")
	}

	body := gin.H{"error": code, "message": message}
	if id := middleware.RequestID(c); id != "" {
		body["requestId"] = id
	}
	c.JSON(status, body)
}

func writeBindError(c *gin.Context, err error) {
	writeError(c, &services.Error{
		Code:    services.CodeInvalidPayload,
		Message: "invalid request body: " + err.Error(),
	})
}
