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
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/pkg/metrics"
	"keyframe-search/pkg/tracing"
)

// 默认每波并发上限与单阶段超时
const (
	DefaultMaxObjectCallsPerWave      = 2
	DefaultMaxTextOrImageCallsPerWave = 1
	DefaultStageTimeout               = 5 * time.Second
)

// Caps 每波并发上限。本地层（objects/metadata）与远程层（CLIP 检索）分别计数。
type Caps struct {
	MaxObjectCallsPerWave      int
	MaxTextOrImageCallsPerWave int
}

func (c Caps) withDefaults() Caps {
	if c.MaxObjectCallsPerWave <= 0 {
		c.MaxObjectCallsPerWave = DefaultMaxObjectCallsPerWave
	}
	if c.MaxTextOrImageCallsPerWave <= 0 {
		c.MaxTextOrImageCallsPerWave = DefaultMaxTextOrImageCallsPerWave
	}
	return c
}

// ScheduledStage 带提交序号的阶段
type ScheduledStage struct {
	Index int
	Stage Stage
}

// stageQueue 只读切片 + 头指针，出队不修改底层切片
type stageQueue struct {
	items []ScheduledStage
	head  int
}

func (q *stageQueue) empty() bool { return q.head >= len(q.items) }

func (q *stageQueue) pop() ScheduledStage {
	s := q.items[q.head]
	q.head++
	return s
}

// tierQueues 同一层级内按类型分组的队列，按首次出现顺序轮询
type tierQueues struct {
	order  []Type
	queues map[Type]*stageQueue
	cursor int
	limit  int
}

func newTierQueues(limit int) *tierQueues {
	return &tierQueues{queues: make(map[Type]*stageQueue), limit: limit}
}

func (t *tierQueues) push(s ScheduledStage) {
	typ := s.Stage.Type()
	q, ok := t.queues[typ]
	if !ok {
		q = &stageQueue{}
		t.queues[typ] = q
		t.order = append(t.order, typ)
	}
	q.items = append(q.items, s)
}

// take 最多取 limit 个阶段，在非空类型之间轮询；游标跨波次保留以保证公平
func (t *tierQueues) take() []ScheduledStage {
	var out []ScheduledStage
	for len(out) < t.limit {
		picked := false
		for i := 0; i < len(t.order); i++ {
			pos := (t.cursor + i) % len(t.order)
			q := t.queues[t.order[pos]]
			if q.empty() {
				continue
			}
			out = append(out, q.pop())
			t.cursor = (pos + 1) % len(t.order)
			picked = true
			break
		}
		if !picked {
			break
		}
	}
	return out
}

func (t *tierQueues) remaining() int {
	n := 0
	for _, q := range t.queues {
		n += len(q.items) - q.head
	}
	return n
}

// Scheduler 按波次出队：每波本地层最多 MaxObjectCallsPerWave 个，
// 远程层最多 MaxTextOrImageCallsPerWave 个
type Scheduler struct {
	local  *tierQueues
	remote *tierQueues
}

// NewScheduler 按类型分组阶段，组内保持提交顺序
func NewScheduler(stages []Stage, caps Caps) *Scheduler {
	caps = caps.withDefaults()
	s := &Scheduler{
		local:  newTierQueues(caps.MaxObjectCallsPerWave),
		remote: newTierQueues(caps.MaxTextOrImageCallsPerWave),
	}
	for i, st := range stages {
		item := ScheduledStage{Index: i, Stage: st}
		if tierOf(st) == tierRemote {
			s.remote.push(item)
		} else {
			s.local.push(item)
		}
	}
	return s
}

// NextWave 返回下一波阶段，按提交序号升序；队列耗尽时返回 nil
func (s *Scheduler) NextWave() []ScheduledStage {
	wave := append(s.local.take(), s.remote.take()...)
	if len(wave) == 0 {
		return nil
	}
	sort.Slice(wave, func(i, j int) bool { return wave[i].Index < wave[j].Index })
	return wave
}

// Remaining 尚未出队的阶段数
func (s *Scheduler) Remaining() int {
	return s.local.remaining() + s.remote.remaining()
}

type stageOutcome struct {
	frames []common.FrameIdentity
	err    error
}

// RunWave 并发执行一波阶段并等待全部完成，结果按 wave 中的位置返回。
// 每个阶段单独限时；任一阶段失败时取消同波其余阶段并返回第一个 BackendError。
func RunWave(ctx context.Context, exec StageExecutor, wave []ScheduledStage, stageTimeout time.Duration) ([][]common.FrameIdentity, error) {
	outputs := make([][]common.FrameIdentity, len(wave))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range wave {
		g.Go(func() error {
			frames, err := runStage(gctx, exec, item, stageTimeout)
			if err != nil {
				return err
			}
			outputs[i] = frames
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func runStage(ctx context.Context, exec StageExecutor, item ScheduledStage, timeout time.Duration) ([]common.FrameIdentity, error) {
	typ := string(item.Stage.Type())
	t := tierOf(item.Stage).String()
	metrics.StageInflight.WithLabelValues(t).Inc()
	defer metrics.StageInflight.WithLabelValues(t).Dec()

	ctx, span := tracing.StartStageSpan(ctx, item.Index, typ)
	start := time.Now()

	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 后端若不响应 ctx，超时后直接返回，迟到的结果被丢弃
	done := make(chan stageOutcome, 1)
	go func() {
		frames, err := exec.Execute(sctx, item.Stage)
		done <- stageOutcome{frames: frames, err: err}
	}()

	var out stageOutcome
	select {
	case out = <-done:
	case <-sctx.Done():
		out.err = sctx.Err()
	}
	metrics.StageDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	if out.err != nil {
		metrics.StageTotal.WithLabelValues(typ, "error").Inc()
		err := common.NewBackendError(item.Index, typ, out.err)
		tracing.EndWithError(span, err)
		return nil, err
	}
	result := "ok"
	if _, ok := item.Stage.(UnsupportedStage); ok {
		result = "unsupported"
	}
	metrics.StageTotal.WithLabelValues(typ, result).Inc()
	span.End()
	if out.frames == nil {
		out.frames = []common.FrameIdentity{}
	}
	return out.frames, nil
}
