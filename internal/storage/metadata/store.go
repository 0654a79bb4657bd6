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


package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/pkg/config"
	"keyframe-search/pkg/log"
)

// LoadSeed 从 JSON 数组（VideoMetadata 列表）写入元数据
func LoadSeed(ctx context.Context, s Store, r io.Reader) (int, error) {
	var videos []common.VideoMetadata
	if err := json.NewDecoder(r).Decode(&videos); err != nil {
		return 0, fmt.Errorf("解析元数据种子失败: %w", err)
	}
	for i, v := range videos {
		if err := s.Put(ctx, v); err != nil {
			return i, err
		}
	}
	return len(videos), nil
}

// NewStore 根据配置创建元数据存储，可选加载种子文件
func NewStore(ctx context.Context, cfg config.MetadataConfig, logger *log.Logger) (Store, error) {
	var s Store
	switch cfg.Type {
	case "", "memory":
		s = NewMemoryStore()
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.DSN, cfg.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("连接元数据数据库失败: %w", err)
		}
		s = pg
	default:
		return nil, fmt.Errorf("不支持的元数据存储类型: %s", cfg.Type)
	}
	if cfg.Seed == "" {
		return s, nil
	}
	f, err := os.Open(cfg.Seed)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	defer f.Close()
	n, err := LoadSeed(ctx, s, f)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("已加载元数据种子", "file", cfg.Seed, "videos", n)
	}
	return s, nil
}
