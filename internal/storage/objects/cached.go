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
	"errors"
	"sort"
	"strings"
	"time"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/storage/cache"
	"keyframe-search/pkg/log"
	"keyframe-search/pkg/metrics"
)

// CachedStore 在 Store 之上缓存读请求；缓存故障时回落到底层存储
type CachedStore struct {
	Store
	cache  cache.Store
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedStore 包装 base；写入会使该帧与类别统计的缓存失效
func NewCachedStore(base Store, c cache.Store, ttl time.Duration, logger *log.Logger) *CachedStore {
	if logger == nil {
		logger = log.Nop()
	}
	return &CachedStore{Store: base, cache: c, ttl: ttl, logger: logger}
}

const classCountsKey = "objects:classes"

func frameKey(f common.FrameIdentity) string { return "objects:frame:" + f.KeyframeID() }

func classesKey(classes []string) string {
	sorted := append([]string(nil), classes...)
	sort.Strings(sorted)
	return "objects:all:" + strings.Join(sorted, "\x1f")
}

// lookup 命中返回 true；未命中或缓存出错时调用 load 并回填
func lookup[T any](ctx context.Context, s *CachedStore, key string, dest *T, load func() (T, error)) error {
	err := s.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return nil
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		s.logger.Warn("读取检测缓存失败", "key", key, "error", err)
	}
	v, err := load()
	if err != nil {
		return err
	}
	*dest = v
	if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
		s.logger.Warn("写入检测缓存失败", "key", key, "error", err)
	}
	return nil
}

// FramesWithAllClasses 实现 Store
func (s *CachedStore) FramesWithAllClasses(ctx context.Context, classes []string) ([]common.FrameDetections, error) {
	var out []common.FrameDetections
	err := lookup(ctx, s, classesKey(classes), &out, func() ([]common.FrameDetections, error) {
		return s.Store.FramesWithAllClasses(ctx, classes)
	})
	return out, err
}

// FrameDetections 实现 Store
func (s *CachedStore) FrameDetections(ctx context.Context, frame common.FrameIdentity) ([]common.Detection, error) {
	var out []common.Detection
	err := lookup(ctx, s, frameKey(frame), &out, func() ([]common.Detection, error) {
		return s.Store.FrameDetections(ctx, frame)
	})
	return out, err
}

// ClassCounts 实现 Store
func (s *CachedStore) ClassCounts(ctx context.Context) ([]common.ClassCount, error) {
	var out []common.ClassCount
	err := lookup(ctx, s, classCountsKey, &out, func() ([]common.ClassCount, error) {
		return s.Store.ClassCounts(ctx)
	})
	return out, err
}

// Put 写入底层存储并失效相关缓存。类别组合查询的缓存只能等 TTL 过期。
func (s *CachedStore) Put(ctx context.Context, fd common.FrameDetections) error {
	if err := s.Store.Put(ctx, fd); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, frameKey(fd.Frame))
	_ = s.cache.Delete(ctx, classCountsKey)
	return nil
}
