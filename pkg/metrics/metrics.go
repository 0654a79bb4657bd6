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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueryTotal, QueryDuration, WavesPerQuery,
		StageTotal, StageDuration, StageInflight,
		CacheRequests, BackendRequests,
	)
}

// QueryTotal 多阶段查询总数（按结果）
var QueryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyframe_query_total",
		Help: "多阶段查询总数",
	},
	[]string{"result"}, // ok | exhausted | invalid | backend_error
)

// QueryDuration 多阶段查询端到端耗时（秒）
var QueryDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "keyframe_query_duration_seconds",
		Help:    "多阶段查询耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// WavesPerQuery 每次查询执行的波次数
var WavesPerQuery = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "keyframe_waves_per_query",
		Help:    "每次查询执行的波次数",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	},
)

// StageTotal 阶段执行总数（按类型与结果）
var StageTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyframe_stage_total",
		Help: "阶段执行总数",
	},
	[]string{"type", "result"}, // result: ok | error | unsupported
)

// StageDuration 单阶段耗时（秒）
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "keyframe_stage_duration_seconds",
		Help:    "单阶段耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"type"},
)

// StageInflight 当前在途阶段调用数（按层级）
var StageInflight = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "keyframe_stage_inflight",
		Help: "当前在途阶段调用数",
	},
	[]string{"tier"}, // local | remote
)

// CacheRequests 检测结果缓存命中情况
var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyframe_cache_requests_total",
		Help: "缓存请求总数",
	},
	[]string{"result"}, // hit | miss | error
)

// BackendRequests 外部后端请求数（clip / dres / translate）
var BackendRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyframe_backend_requests_total",
		Help: "外部后端请求总数",
	},
	[]string{"backend", "status"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
