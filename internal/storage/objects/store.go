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


package objects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/storage/cache"
	"keyframe-search/pkg/config"
	"keyframe-search/pkg/log"
)

// LoadSeed 从 JSON 数组（FrameDetections 列表）写入检测结果
func LoadSeed(ctx context.Context, s Store, r io.Reader) (int, error) {
	var items []common.FrameDetections
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("解析检测种子失败: %w", err)
	}
	for i, fd := range items {
		if err := s.Put(ctx, fd); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

// NewStore 根据配置创建检测存储；配置了 cache_ttl 且 c 非空时加缓存层
func NewStore(ctx context.Context, cfg config.ObjectsConfig, c cache.Store, logger *log.Logger) (Store, error) {
	var base Store
	switch cfg.Type {
	case "", "memory":
		base = NewMemoryStore()
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.DSN, cfg.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("连接检测数据库失败: %w", err)
		}
		base = pg
	default:
		return nil, fmt.Errorf("不支持的检测存储类型: %s", cfg.Type)
	}

	if cfg.Seed != "" {
		f, err := os.Open(cfg.Seed)
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		n, err := LoadSeed(ctx, base, f)
		_ = f.Close()
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		if logger != nil {
			logger.Info("已加载检测种子", "file", cfg.Seed, "frames", n)
		}
	}

	if ttl := config.Duration(cfg.CacheTTL, 0); ttl > 0 && c != nil {
		return NewCachedStore(base, c, ttl, logger), nil
	}
	return base, nil
}

var (
	_ Store = (*CachedStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
