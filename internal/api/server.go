package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"NoccStacks-Crew/internal/auth"
	"NoccStacks-Crew/internal/observability/metrics"
	"NoccStacks-Crew/internal/run"
	"NoccStacks-Crew/internal/tools"
	"NoccStacks-Crew/pkg/logger"
)

// RunService 是 API 依赖的 run 能力。
type RunService interface {
	Submit(ctx context.Context, req run.KickoffRequest) (*run.Run, error)
	Get(ctx context.Context, id string) (*run.Run, error)
	List(ctx context.Context, opts ...run.ListOption) ([]*run.Run, error)
	Stats(ctx context.Context, opts ...run.ListOption) (run.Stats, error)
}

// Config 描述监听地址、跨域设置与认证服务。Auth 为 nil 时不校验请求。
type Config struct {
	Address      string
	AllowOrigins []string
	Auth         *auth.Service
}

// Server 负责暴露 REST 接口。
type Server struct {
	cfg    Config
	runs   RunService
	tools  *tools.Registry
	engine *gin.Engine
	log    *slog.Logger
}

// NewServer 构造 API 服务实例。runs 或 registry 为 nil 时对应接口返回 503。
func NewServer(cfg Config, runs RunService, registry *tools.Registry) *Server {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	s := &Server{cfg: cfg, runs: runs, tools: registry, log: logger.Named("api")}
	s.engine = s.routes()
	return s
}

// Handler 返回 gin 路由，便于测试或嵌入。
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.observe())
	engine.Use(cors.New(s.corsConfig()))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/runs", s.authorize(auth.PermissionRunsWrite), s.submitRun)
	v1.GET("/runs", s.authorize(auth.PermissionRunsRead), s.listRuns)
	v1.GET("/runs/stats", s.authorize(auth.PermissionRunsRead), s.runStats)
	v1.GET("/runs/:id", s.authorize(auth.PermissionRunsRead), s.getRun)
	v1.GET("/tools", s.authorize(), s.listTools)
	v1.POST("/tools/:name", s.authorize(auth.PermissionToolsInvoke), s.invokeTool)
	return engine
}

func (s *Server) corsConfig() cors.Config {
	config := cors.DefaultConfig()
	if len(s.cfg.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.cfg.AllowOrigins
	}
	return config
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(started)
		metrics.ObserveHTTPRequest(route, c.Request.Method, c.Writer.Status(), elapsed)
		s.log.Debug("请求完成",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("address", s.cfg.Address))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
