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


package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"keyframe-search/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwt        *jwt.HertzJWTMiddleware
	rps        int
}

// NewRouter 创建路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT：开放 /api/auth/login，DRES 提交需要令牌
func (r *Router) SetJWT(j *jwt.HertzJWTMiddleware) { r.jwt = j }

// SetRateLimit 设置 /api 下的全局限流（每秒请求数）
func (r *Router) SetRateLimit(rps int) { r.rps = rps }

// Build 创建 Hertz 实例并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	all := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(all...)
	r.register(h)
	return h
}

func (r *Router) register(h *server.Hertz) {
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api", r.middleware.CORS(), r.middleware.AccessLog(), r.middleware.RateLimit(r.rps))
	api.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {})
	api.GET("/health", r.handler.HealthCheck)

	protect := func(hf app.HandlerFunc) []app.HandlerFunc {
		if r.jwt == nil {
			return []app.HandlerFunc{hf}
		}
		return []app.HandlerFunc{r.jwt.MiddlewareFunc(), hf}
	}
	if r.jwt != nil {
		auth := api.Group("/auth")
		auth.POST("/login", r.jwt.LoginHandler)
		auth.GET("/refresh", r.jwt.RefreshHandler)
	}

	search := api.Group("/search")
	{
		search.POST("", r.handler.Search)
		search.POST("/export", r.handler.Export)
	}

	objects := api.Group("/objects")
	{
		objects.POST("/query", r.handler.ObjectsQuery)
		objects.GET("/classes", r.handler.ObjectClasses)
		objects.GET("/frame", r.handler.ObjectFrame)
		objects.POST("/filter", r.handler.ObjectsFilter)
	}

	meta := api.Group("/metadata")
	{
		meta.POST("/query", r.handler.MetadataQuery)
		meta.GET("/videos", r.handler.ListVideos)
		meta.GET("/videos/:videoName", r.handler.GetVideo)
		meta.GET("/videos/:videoName/frames/:frameName", r.handler.GetFrame)
	}

	api.GET("/keyframes/index", r.handler.KeyframeIndex)
	api.POST("/translate", r.handler.Translate)
	api.POST("/dres/submit", protect(r.handler.SubmitDRES)...)
}
