package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"NoccStacks-Crew/internal/auth"
	xerrors "NoccStacks-Crew/internal/errors"
	"NoccStacks-Crew/internal/run"
	"NoccStacks-Crew/internal/tools"
)

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, run.CodeRunValidation, tools.CodeToolInputInvalid:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, run.CodeRunNotFound, tools.CodeToolNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, run.CodeRunConflict:
		return http.StatusConflict
	case auth.CodeUnauthorized:
		return http.StatusUnauthorized
	case auth.CodeForbidden:
		return http.StatusForbidden
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := xerrors.CodeOf(err)
	status := statusFor(code)
	body := errorBody{Code: string(code), Message: err.Error()}
	if e, ok := xerrors.From(err); ok {
		body.Metadata = e.Metadata()
		if status >= http.StatusInternalServerError {
			body.Message = e.Message()
		}
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
