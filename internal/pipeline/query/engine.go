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

package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/pkg/log"
	"keyframe-search/pkg/metrics"
	"keyframe-search/pkg/tracing"
)

// EngineConfig Engine 构造参数
type EngineConfig struct {
	Executor     StageExecutor
	Caps         Caps
	StageTimeout time.Duration
	MinTopK      int
	Logger       *log.Logger
}

// Engine 多阶段查询入口：校验 -> 分波调度 -> 派发 -> 逐阶段求交
type Engine struct {
	exec         StageExecutor
	validator    Validator
	caps         Caps
	stageTimeout time.Duration
	logger       *log.Logger
}

// Result 一次查询的结果
type Result struct {
	QueryID        string                 `json:"query_id"`
	Frames         []common.FrameIdentity `json:"results"`
	Waves          int                    `json:"waves"`
	StagesExecuted int                    `json:"stages_executed"`
	StagesSkipped  int                    `json:"stages_skipped"`
	Exhausted      bool                   `json:"exhausted"`
}

// KeyframeIDs 结果的 "VIDEO-FRAME" 形式
func (r *Result) KeyframeIDs() []string {
	ids := make([]string, len(r.Frames))
	for i, f := range r.Frames {
		ids[i] = f.KeyframeID()
	}
	return ids
}

// NewEngine 创建 Engine
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("query engine requires a stage executor")
	}
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		exec:         cfg.Executor,
		validator:    NewValidator(cfg.MinTopK),
		caps:         cfg.Caps.withDefaults(),
		stageTimeout: timeout,
		logger:       logger,
	}, nil
}

// Validator 返回引擎使用的校验器
func (e *Engine) Validator() Validator { return e.validator }

// RunDescriptors 解码后执行
func (e *Engine) RunDescriptors(ctx context.Context, descriptors []Descriptor) (*Result, error) {
	if len(descriptors) == 0 {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, common.ErrNoStages
	}
	stages, err := DecodeStages(descriptors)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	return e.Run(ctx, stages)
}

// Run 执行一次多阶段查询。
// 任一阶段校验失败则不派发任何阶段；任一阶段后端失败则整个查询失败；
// 交集为空后不再调度后续波次。
func (e *Engine) Run(ctx context.Context, stages []Stage) (*Result, error) {
	if err := e.validator.ValidateAll(stages); err != nil {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	res := &Result{QueryID: "q-" + uuid.New().String()}
	start := time.Now()
	ctx, span := tracing.StartQuerySpan(ctx, res.QueryID, len(stages))
	logger := e.logger.With("query_id", res.QueryID)
	logger.Info("开始执行多阶段查询", "stages", len(stages))

	sched := NewScheduler(stages, e.caps)
	var current *ResultSet
	for wave := sched.NextWave(); wave != nil; wave = sched.NextWave() {
		res.Waves++
		wctx, wspan := tracing.StartWaveSpan(ctx, res.Waves, len(wave))
		outputs, err := RunWave(wctx, e.exec, wave, e.stageTimeout)
		res.StagesExecuted += len(wave)
		if err != nil {
			tracing.EndWithError(wspan, err)
			tracing.EndWithError(span, err)
			metrics.QueryTotal.WithLabelValues("backend_error").Inc()
			logger.Error("阶段执行失败，查询终止", "wave", res.Waves, "error", err)
			return nil, err
		}
		wspan.End()

		var exhausted bool
		for i, item := range wave {
			if _, ok := item.Stage.(UnsupportedStage); ok {
				continue
			}
			current, exhausted = Fold(current, outputs[i])
			logger.Debug("阶段结果已合并", "wave", res.Waves, "stage", item.Index, "type", item.Stage.Type(),
				"stage_hits", len(outputs[i]), "remaining", current.Len())
			if exhausted {
				break
			}
		}
		if exhausted {
			res.Exhausted = true
			res.StagesSkipped = sched.Remaining()
			logger.Info("交集为空，提前结束", "wave", res.Waves, "skipped", res.StagesSkipped)
			break
		}
	}

	res.Frames = current.Frames()
	span.End()

	outcome := "ok"
	if res.Exhausted {
		outcome = "exhausted"
	}
	metrics.QueryTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	metrics.WavesPerQuery.Observe(float64(res.Waves))
	logger.Info("多阶段查询完成", "results", len(res.Frames), "waves", res.Waves, "elapsed", time.Since(start))
	return res, nil
}
