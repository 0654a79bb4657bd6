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


package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keyframe-search/internal/dres"
	"keyframe-search/internal/model/clip"
	"keyframe-search/internal/model/llm"
	"keyframe-search/internal/pipeline/query"
	"keyframe-search/internal/storage/cache"
	"keyframe-search/internal/storage/keyframe"
	"keyframe-search/internal/storage/metadata"
	"keyframe-search/internal/storage/objects"
	"keyframe-search/internal/storage/vector"
	"keyframe-search/pkg/config"
	"keyframe-search/pkg/log"
	"keyframe-search/pkg/secrets"
)

// Bootstrap 统一初始化：存储、外部后端与查询引擎，cmd 只负责进程生命周期
type Bootstrap struct {
	Config     *config.Config
	Logger     *log.Logger
	Secrets    secrets.Store
	Cache      cache.Store
	Objects    objects.Store
	Metadata   metadata.Store
	Vectors    vector.Store   // 仅 query.similar_frames_from_vector_store 时创建
	Keyframes  *keyframe.Map  // storage.keyframe_map 为空时为 nil
	Clip       *clip.Client   // clip.base_url 为空时为 nil
	Translator llm.Translator // translate.enable=false 时为 nil
	DRES       *dres.Client   // dres.base_url 为空时为 nil
	Engine     *query.Engine
	Subsets    query.Subsets
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger, err := log.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}
	b := &Bootstrap{Config: cfg, Logger: logger, Subsets: query.ParseSubsets(cfg.Subsets)}
	if err := b.init(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	cfg := b.Config
	var err error

	if b.Secrets, err = secrets.NewStore(cfg.Secrets); err != nil {
		return fmt.Errorf("初始化 secret store failed: %w", err)
	}
	if b.Cache, err = cache.NewCache(ctx, cfg.Storage.Cache); err != nil {
		return fmt.Errorf("初始化缓存failed: %w", err)
	}
	if b.Objects, err = objects.NewStore(ctx, cfg.Storage.Objects, b.Cache, b.Logger); err != nil {
		return fmt.Errorf("初始化目标检测存储failed: %w", err)
	}
	if b.Metadata, err = metadata.NewStore(ctx, cfg.Storage.Metadata, b.Logger); err != nil {
		return fmt.Errorf("初始化元数据存储failed: %w", err)
	}
	if cfg.Storage.KeyframeMap != "" {
		b.Keyframes = keyframe.NewMap(cfg.Storage.KeyframeMap)
	}

	var ranked *clip.Retriever
	if cfg.Clip.BaseURL != "" {
		b.Clip, err = clip.NewClient(clip.Config{
			BaseURL:       cfg.Clip.BaseURL,
			Timeout:       config.Duration(cfg.Clip.Timeout, 30*time.Second),
			RetryCount:    cfg.Clip.RetryCount,
			RPS:           cfg.Clip.RPS,
			Burst:         cfg.Clip.Burst,
			MaxConcurrent: cfg.Clip.MaxConcurrent,
			ImageBaseURL:  cfg.Clip.ImageBaseURL,
		})
		if err != nil {
			return fmt.Errorf("初始化 CLIP 客户端failed: %w", err)
		}
		ranked = clip.NewRetriever(b.Clip, 0)
	} else {
		b.Logger.Warn("未配置 clip.base_url，排序类阶段将返回后端错误")
	}

	dcfg := query.DispatcherConfig{Objects: b.Objects, Metadata: b.Metadata, Logger: b.Logger}
	if ranked != nil {
		dcfg.Ranked = ranked
	}
	if cfg.Query.SimilarFramesFromVector {
		if b.Vectors, err = vector.NewStore(ctx, cfg.Storage.Vector); err != nil {
			return fmt.Errorf("初始化向量存储failed: %w", err)
		}
		if cfg.Storage.Vector.Dimension > 0 {
			if err := vector.EnsureIndex(ctx, b.Vectors, cfg.Storage.Vector.Collection, cfg.Storage.Vector.Dimension, "cosine"); err != nil {
				return fmt.Errorf("创建向量索引failed: %w", err)
			}
		}
		similar, err := query.NewSimilarFrameRetriever(&query.SimilarFrameRetrieverConfig{
			VectorStore:  b.Vectors,
			DefaultIndex: cfg.Storage.Vector.Collection,
			DefaultTopK:  cfg.Query.MinTopK,
		})
		if err != nil {
			return err
		}
		dcfg.Similar = similar
	}

	b.Engine, err = query.NewEngine(query.EngineConfig{
		Executor: query.NewDispatcher(dcfg),
		Caps: query.Caps{
			MaxObjectCallsPerWave:      cfg.Query.MaxObjectCallsPerWave,
			MaxTextOrImageCallsPerWave: cfg.Query.MaxTextOrImageCallsPerWave,
		},
		StageTimeout: config.Duration(cfg.Query.StageTimeout, query.DefaultStageTimeout),
		MinTopK:      cfg.Query.MinTopK,
		Logger:       b.Logger,
	})
	if err != nil {
		return err
	}

	if cfg.Translate.Enable {
		tc := cfg.Translate
		if tc.APIKey, err = secrets.Resolve(ctx, b.Secrets, tc.APIKey); err != nil {
			return fmt.Errorf("读取翻译 API Key failed: %w", err)
		}
		if b.Translator, err = llm.NewTranslator(ctx, tc); err != nil {
			return fmt.Errorf("初始化翻译failed: %w", err)
		}
	}

	if cfg.DRES.BaseURL != "" {
		password, err := secrets.Resolve(ctx, b.Secrets, cfg.DRES.Password)
		if err != nil {
			return fmt.Errorf("读取 DRES 密码failed: %w", err)
		}
		b.DRES, err = dres.NewClient(dres.Config{
			BaseURL:      cfg.DRES.BaseURL,
			Username:     cfg.DRES.Username,
			Password:     password,
			EvaluationID: cfg.DRES.EvaluationID,
			Timeout:      config.Duration(cfg.DRES.Timeout, 10*time.Second),
		})
		if err != nil {
			return fmt.Errorf("初始化 DRES 客户端failed: %w", err)
		}
	}
	return nil
}

// Operators 解析后的操作员凭据（支持 secret://key）
func (b *Bootstrap) Operators(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(b.Config.API.Middleware.Operators))
	for user, pw := range b.Config.API.Middleware.Operators {
		v, err := secrets.Resolve(ctx, b.Secrets, pw)
		if err != nil {
			return nil, fmt.Errorf("读取操作员 %s 密码failed: %w", user, err)
		}
		out[user] = v
	}
	return out, nil
}

// Close 关闭存储连接
func (b *Bootstrap) Close() error {
	var errs []error
	if b.Objects != nil {
		errs = append(errs, b.Objects.Close())
	}
	if b.Metadata != nil {
		errs = append(errs, b.Metadata.Close())
	}
	if b.Vectors != nil {
		errs = append(errs, b.Vectors.Close())
	}
	if b.Cache != nil {
		errs = append(errs, b.Cache.Close())
	}
	if b.Logger != nil {
		errs = append(errs, b.Logger.Close())
	}
	return errors.Join(errs...)
}
