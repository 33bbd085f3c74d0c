package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"NoccStacks-Crew/internal/auth"
	"NoccStacks-Crew/pkg/logger"
)

// authorize 校验 bearer token 并要求给定权限；认证关闭时直接放行。
func (s *Server) authorize(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.Auth.Enabled() {
			c.Next()
			return
		}
		subject, err := s.cfg.Auth.AuthenticateRequest(c.GetHeader("Authorization"))
		if err == nil {
			err = subject.Authorize(permissions...)
		}
		if err != nil {
			attrs := []any{
				slog.String("path", c.Request.URL.Path),
				slog.String("method", c.Request.Method),
				slog.Any("error", err),
			}
			if subject != nil {
				attrs = append(attrs, slog.String("subject", subject.Name))
			}
			logger.Audit().Warn("access_denied", attrs...)
			writeError(c, err)
			return
		}
		c.Request = c.Request.WithContext(auth.WithSubject(c.Request.Context(), subject))
		c.Next()
	}
}
