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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"keyframe-search/internal/dres"
	"keyframe-search/internal/model/llm"
	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/pipeline/query"
	"keyframe-search/internal/storage/keyframe"
	"keyframe-search/internal/storage/metadata"
	"keyframe-search/internal/storage/objects"
	pkgerrors "keyframe-search/pkg/errors"
	"keyframe-search/pkg/log"
	"keyframe-search/pkg/metrics"
)

// Submitter DRES 提交
type Submitter interface {
	Submit(ctx context.Context, item string, frame int) (*dres.SubmitResult, error)
}

// Deps Handler 依赖；除 Engine 外均可为空，对应接口返回 503
type Deps struct {
	Engine            *query.Engine
	Subsets           query.Subsets
	ExportLimit       int
	Objects           objects.Store
	FilterConcurrency int
	Metadata          metadata.Store
	Keyframes         *keyframe.Map
	DRES              Submitter
	Translator        llm.Translator
	Logger            *log.Logger
}

// Handler HTTP 处理器
type Handler struct {
	engine            *query.Engine
	validator         query.Validator
	subsets           query.Subsets
	exportLimit       int
	objects           objects.Store
	filterConcurrency int
	metadata          metadata.Store
	keyframes         *keyframe.Map
	dres              Submitter
	translator        llm.Translator
	logger            *log.Logger
	startedAt         time.Time
}

// NewHandler 创建 Handler
func NewHandler(d Deps) *Handler {
	if d.ExportLimit <= 0 {
		d.ExportLimit = 100
	}
	if d.FilterConcurrency <= 0 {
		d.FilterConcurrency = objects.DefaultFilterConcurrency
	}
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	validator := query.NewValidator(0)
	if d.Engine != nil {
		validator = d.Engine.Validator()
	}
	return &Handler{
		engine:            d.Engine,
		validator:         validator,
		subsets:           d.Subsets,
		exportLimit:       d.ExportLimit,
		objects:           d.Objects,
		filterConcurrency: d.FilterConcurrency,
		metadata:          d.Metadata,
		keyframes:         d.Keyframes,
		dres:              d.DRES,
		translator:        d.Translator,
		logger:            d.Logger,
		startedAt:         time.Now(),
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		"backends": map[string]bool{
			"engine":    h.engine != nil,
			"objects":   h.objects != nil,
			"metadata":  h.metadata != nil,
			"keyframes": h.keyframes != nil,
			"dres":      h.dres != nil,
			"translate": h.translator != nil,
		},
	})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(ctx, "write metrics failed: %v", err)
		c.String(consts.StatusInternalServerError, err.Error())
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// errUnavailable 后端未配置
func errUnavailable(name string) error {
	return pkgerrors.Wrapf(pkgerrors.ErrUnavailable, "%s is not configured", name)
}

// statusOf 错误到 HTTP 状态码的映射
func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrNoStages),
		common.IsValidationError(err),
		errors.Is(err, pkgerrors.ErrInvalidArg):
		return consts.StatusBadRequest
	case common.IsBackendError(err), errors.Is(err, common.ErrBackendStatus):
		return consts.StatusBadGateway
	case errors.Is(err, pkgerrors.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, pkgerrors.ErrUnavailable),
		errors.Is(err, common.ErrBackendNotWired):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}

func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := statusOf(err)
	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "%s %s failed: %v", c.Method(), c.Path(), err)
	}
	body := map[string]interface{}{"error": err.Error()}
	if ve, ok := common.GetValidationError(err); ok {
		body["stage"] = ve.Index
		body["type"] = ve.Type
	}
	if be, ok := common.GetBackendError(err); ok {
		body["stage"] = be.Index
		body["type"] = be.Type
	}
	c.JSON(status, body)
}

// upstream 外部服务调用失败
func upstream(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrBackendStatus, name, err)
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, map[string]string{"error": msg})
}
