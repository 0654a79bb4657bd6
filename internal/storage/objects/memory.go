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
	"sort"
	"sync"

	"keyframe-search/internal/pipeline/common"
)

// MemoryStore 内存检测存储，按写入顺序返回帧
type MemoryStore struct {
	mu     sync.RWMutex
	order  []common.FrameIdentity
	frames map[common.FrameIdentity][]common.Detection
}

// NewMemoryStore 创建内存检测存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{frames: make(map[common.FrameIdentity][]common.Detection)}
}

// FramesWithAllClasses 实现 Store
func (s *MemoryStore) FramesWithAllClasses(ctx context.Context, classes []string) ([]common.FrameDetections, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.FrameDetections, 0)
	for _, f := range s.order {
		dets := s.frames[f]
		if hasAll(dets, classes) {
			out = append(out, common.FrameDetections{Frame: f, Objects: append([]common.Detection(nil), dets...)})
		}
	}
	return out, nil
}

func hasAll(dets []common.Detection, classes []string) bool {
	for _, c := range classes {
		found := false
		for _, d := range dets {
			if d.ClassName == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FrameDetections 实现 Store
func (s *MemoryStore) FrameDetections(ctx context.Context, frame common.FrameIdentity) ([]common.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.Detection{}, s.frames[frame]...), nil
}

// ClassCounts 实现 Store
func (s *MemoryStore) ClassCounts(ctx context.Context) ([]common.ClassCount, error) {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, dets := range s.frames {
		for _, d := range dets {
			counts[d.ClassName]++
		}
	}
	s.mu.RUnlock()

	out := make([]common.ClassCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, common.ClassCount{ClassName: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out, nil
}

// Put 实现 Store
func (s *MemoryStore) Put(ctx context.Context, fd common.FrameDetections) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[fd.Frame]; !ok {
		s.order = append(s.order, fd.Frame)
	}
	s.frames[fd.Frame] = append([]common.Detection(nil), fd.Objects...)
	return nil
}

// Close 实现 Store
func (s *MemoryStore) Close() error {
	return nil
}
