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
	"sort"

	einoretriever "github.com/cloudwego/eino/components/retriever"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/pkg/log"
)

// ObjectSource 目标检测存储：返回同时包含所有给定类别的帧（结构性 AND 预过滤）
type ObjectSource interface {
	FramesWithAllClasses(ctx context.Context, classes []string) ([]common.FrameDetections, error)
}

// MetadataSource 视频元数据存储
type MetadataSource interface {
	QueryVideos(ctx context.Context, filter common.MetadataFilter) ([]common.VideoMetadata, error)
}

// StageExecutor 执行单个阶段并返回规范化的关键帧列表
type StageExecutor interface {
	Execute(ctx context.Context, s Stage) ([]common.FrameIdentity, error)
}

// DispatcherConfig Dispatcher 构造参数
type DispatcherConfig struct {
	// Ranked 排序检索后端（CLIP），处理 text/image/keyframes/scenes/asr
	Ranked einoretriever.Retriever
	// Similar 可选：按关键帧 id 找相似帧；为空时 keyframes(image_id) 交给 Ranked
	Similar  einoretriever.Retriever
	Objects  ObjectSource
	Metadata MetadataSource
	Logger   *log.Logger
}

// Dispatcher 将阶段路由到对应后端
type Dispatcher struct {
	ranked   einoretriever.Retriever
	similar  einoretriever.Retriever
	objects  ObjectSource
	metadata MetadataSource
	logger   *log.Logger
}

// NewDispatcher 创建 Dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		ranked:   cfg.Ranked,
		similar:  cfg.Similar,
		objects:  cfg.Objects,
		metadata: cfg.Metadata,
		logger:   logger,
	}
}

// Execute 执行阶段。排序类阶段保持后端返回的相似度顺序；
// 不支持的阶段类型记录告警并返回空结果，后端失败直接返回错误。
func (d *Dispatcher) Execute(ctx context.Context, s Stage) ([]common.FrameIdentity, error) {
	switch st := s.(type) {
	case TextStage:
		return d.rank(ctx, d.ranked, st.Query, st.TopK, common.WithQueryType(common.QueryTypeText))
	case ImageStage:
		return d.rank(ctx, d.ranked, "", st.TopK,
			common.WithQueryType(common.QueryTypeImage),
			common.WithImage(st.ImageData),
			common.WithImageURL(st.ImageURL))
	case KeyframesStage:
		if st.ImageIDQuery == "" {
			return d.rank(ctx, d.ranked, st.TextQuery, st.TopK, common.WithQueryType(common.QueryTypeText))
		}
		if d.similar != nil {
			return d.rank(ctx, d.similar, st.ImageIDQuery, st.TopK, common.WithQueryType(common.QueryTypeImageID))
		}
		return d.rank(ctx, d.ranked, st.ImageIDQuery, st.TopK, common.WithQueryType(common.QueryTypeImageID))
	case ScenesStage:
		return d.rank(ctx, d.ranked, st.Query, st.TopK, common.WithQueryType(common.QueryTypeScenes))
	case ASRStage:
		return d.rank(ctx, d.ranked, st.Query, st.TopK, common.WithQueryType(common.QueryTypeASR))
	case ObjectsStage:
		return d.filterObjects(ctx, st.Spec)
	case MetadataStage:
		return d.filterMetadata(ctx, st)
	case UnsupportedStage:
		d.logger.Warn("跳过不支持的阶段类型", "type", st.Name)
		return []common.FrameIdentity{}, nil
	default:
		return nil, fmt.Errorf("unhandled stage %T", s)
	}
}

func (d *Dispatcher) rank(ctx context.Context, r einoretriever.Retriever, q string, topK int, opts ...einoretriever.Option) ([]common.FrameIdentity, error) {
	if r == nil {
		return nil, fmt.Errorf("ranked retrieval: %w", common.ErrBackendNotWired)
	}
	opts = append(opts, einoretriever.WithTopK(topK))
	docs, err := r.Retrieve(ctx, q, opts...)
	if err != nil {
		return nil, err
	}
	return common.FramesFromDocuments(docs)
}

func (d *Dispatcher) filterObjects(ctx context.Context, spec ObjectCountSpec) ([]common.FrameIdentity, error) {
	if d.objects == nil {
		return nil, fmt.Errorf("object store: %w", common.ErrBackendNotWired)
	}
	classes := make([]string, 0, len(spec))
	for c := range spec {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	frames, err := d.objects.FramesWithAllClasses(ctx, classes)
	if err != nil {
		return nil, err
	}
	return FilterByObjectCounts(frames, spec), nil
}

func (d *Dispatcher) filterMetadata(ctx context.Context, st MetadataStage) ([]common.FrameIdentity, error) {
	if d.metadata == nil {
		return nil, fmt.Errorf("metadata store: %w", common.ErrBackendNotWired)
	}
	from, to, err := st.Range()
	if err != nil {
		return nil, err
	}
	videos, err := d.metadata.QueryVideos(ctx, common.MetadataFilter{
		VideoNames: st.VideoNames,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, err
	}
	return ExpandVideoFrames(videos), nil
}

// ExpandVideoFrames 把视频展开为其全部关键帧
func ExpandVideoFrames(videos []common.VideoMetadata) []common.FrameIdentity {
	var out []common.FrameIdentity
	for _, v := range videos {
		for _, fd := range v.FrameData {
			out = append(out, common.FrameFromOrdinal(v.VideoName, fd.N))
		}
	}
	if out == nil {
		out = []common.FrameIdentity{}
	}
	return out
}
