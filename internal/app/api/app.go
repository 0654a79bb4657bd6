// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"keyframe-search/internal/api/http"
	"keyframe-search/internal/api/http/middleware"
	"keyframe-search/internal/app"
	"keyframe-search/pkg/config"
	"keyframe-search/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 Router、Handler、Middleware）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	logFile      *os.File
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(ctx context.Context, b *app.Bootstrap) (*App, error) {
	cfg := b.Config
	deps := http.Deps{
		Engine:            b.Engine,
		Subsets:           b.Subsets,
		ExportLimit:       cfg.Query.ExportLimit,
		Objects:           b.Objects,
		FilterConcurrency: cfg.Query.FilterConcurrency,
		Metadata:          b.Metadata,
		Keyframes:         b.Keyframes,
		Translator:        b.Translator,
		Logger:            b.Logger,
	}
	if b.DRES != nil {
		deps.DRES = b.DRES
	}
	handler := http.NewHandler(deps)

	var origins []string
	if cfg.API.CORS.Enable {
		origins = cfg.API.CORS.AllowOrigins
	}
	router := http.NewRouter(handler, middleware.NewMiddleware(origins, b.Logger))
	if cfg.API.Middleware.RateLimit {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS)
	}

	if cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		operators, err := b.Operators(ctx)
		if err != nil {
			return nil, err
		}
		timeout := config.Duration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := config.Duration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh, operators)
		if err != nil {
			b.Logger.Warn("JWT 初始化失败，将跳过认证", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			b.Logger.Info("JWT 认证已启用", "operators", len(operators))
		}
	}

	return &App{bootstrap: b, router: router}, nil
}

// setupHertzLogger 使用 Hertz slog 扩展，与 bootstrap 日志配置对齐
func (a *App) setupHertzLogger() error {
	cfg := a.bootstrap.Config
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output, a.logFile = f, f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))
	return nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	logger := a.bootstrap.Logger
	logger.Info("API 服务启动", "addr", addr)
	if err := a.setupHertzLogger(); err != nil {
		return err
	}

	tc := a.bootstrap.Config.Monitoring.Tracing
	exportEndpoint := tc.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tc.Enable && exportEndpoint != "" {
		opts := []provider.Option{
			provider.WithServiceName(tc.ServiceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tc.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, cfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(cfg))
		logger.Info("链路追踪已启用", "service_name", tc.ServiceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return a.bootstrap.Close()
}
