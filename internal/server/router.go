package server

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appmiddleware "github.com/feastly/feastly-web/internal/app/middleware"
	"github.com/feastly/feastly-web/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func (s *Server) SetupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(s.logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
	}))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))
	r.Use(appmiddleware.OTELGinMiddleware("feastly-web"))
	r.Use(appmiddleware.RequestIDMiddleware())
	r.Use(appmiddleware.CORSMiddleware())
	r.Use(appmiddleware.SecurityMiddleware())
	r.Use(sessions.Sessions(s.cfg.Session.CookieName, cookie.NewStore([]byte(s.cfg.Session.Secret))))

	routes.Setup(r, s.cfg, s.authClient, s.catalogClient, s.logger)

	return r
}

// zapContextFunc returns the Zap context function for request logging
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if requestID := c.Writer.Header().Get("X-Request-Id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		return fields
	}
}
