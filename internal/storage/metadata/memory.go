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
	"sort"
	"sync"

	"keyframe-search/internal/pipeline/common"
	pkgerrors "keyframe-search/pkg/errors"
)

// MemoryStore 内存元数据存储
type MemoryStore struct {
	videos map[string]common.VideoMetadata
	mu     sync.RWMutex
}

// NewMemoryStore 创建新的内存元数据存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{videos: make(map[string]common.VideoMetadata)}
}

// QueryVideos 实现 Store
func (s *MemoryStore) QueryVideos(ctx context.Context, filter common.MetadataFilter) ([]common.VideoMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.VideoMetadata, 0)
	for _, v := range s.videos {
		if filter.Match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoName < out[j].VideoName })
	return out, nil
}

// ListVideos 实现 Store
func (s *MemoryStore) ListVideos(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.videos))
	for n := range s.videos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// GetVideo 实现 Store
func (s *MemoryStore) GetVideo(ctx context.Context, videoName string) (*common.VideoMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[videoName]
	if !ok {
		return nil, pkgerrors.NotFoundf("video %s", videoName)
	}
	return &v, nil
}

// GetFrame 实现 Store
func (s *MemoryStore) GetFrame(ctx context.Context, videoName string, n int) (*common.FrameData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[videoName]
	if !ok {
		return nil, pkgerrors.NotFoundf("video %s", videoName)
	}
	for _, fd := range v.FrameData {
		if fd.N == n {
			return &fd, nil
		}
	}
	return nil, pkgerrors.NotFoundf("frame %d of video %s", n, videoName)
}

// Put 实现 Store；逐帧数据按 n 排序保存
func (s *MemoryStore) Put(ctx context.Context, v common.VideoMetadata) error {
	v.FrameData = append([]common.FrameData(nil), v.FrameData...)
	sort.Slice(v.FrameData, func(i, j int) bool { return v.FrameData[i].N < v.FrameData[j].N })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.VideoName] = v
	return nil
}

// Close 实现 Store
func (s *MemoryStore) Close() error {
	return nil
}
