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

// Package tracing OpenTelemetry 链路追踪：查询与阶段 span
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "keyframe-search"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartQuerySpan 开始一次多阶段查询的 span
func StartQuerySpan(ctx context.Context, queryID string, stageCount int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "query.execute",
		trace.WithAttributes(
			attribute.String("query.id", queryID),
			attribute.Int("query.stages", stageCount),
		),
	)
}

// StartWaveSpan 开始一个波次的 span
func StartWaveSpan(ctx context.Context, wave int, size int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "query.wave",
		trace.WithAttributes(
			attribute.Int("wave.number", wave),
			attribute.Int("wave.size", size),
		),
	)
}

// StartStageSpan 开始单个阶段调用的 span
func StartStageSpan(ctx context.Context, index int, stageType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "stage.dispatch",
		trace.WithAttributes(
			attribute.Int("stage.index", index),
			attribute.String("stage.type", stageType),
		),
	)
}

// EndWithError 记录错误并结束 span
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
