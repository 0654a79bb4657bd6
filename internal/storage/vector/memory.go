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


package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore 内存向量存储
type MemoryStore struct {
	indexes map[string]*memoryIndex
	mu      sync.RWMutex
}

type memoryIndex struct {
	info    *Index
	vectors map[string]*Vector
}

// NewMemoryStore 创建新的内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memoryIndex)}
}

// Create 创建索引
func (s *MemoryStore) Create(ctx context.Context, idx *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[idx.Name]; ok {
		return fmt.Errorf("索引已存在: %s", idx.Name)
	}
	info := *idx
	if info.Distance == "" {
		info.Distance = "cosine"
	}
	s.indexes[idx.Name] = &memoryIndex{info: &info, vectors: make(map[string]*Vector)}
	return nil
}

// ListIndexes 列出所有索引
func (s *MemoryStore) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for n := range s.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Add 添加向量
func (s *MemoryStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	for _, v := range vectors {
		if len(v.Values) != idx.info.Dimension {
			return fmt.Errorf("向量 %s 维度不匹配: 期望 %d, 实际 %d", v.ID, idx.info.Dimension, len(v.Values))
		}
	}
	for _, v := range vectors {
		cp := *v
		cp.Values = append([]float32(nil), v.Values...)
		idx.vectors[v.ID] = &cp
	}
	return nil
}

// Search 搜索向量
func (s *MemoryStore) Search(ctx context.Context, indexName string, query []float32, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	if len(query) != idx.info.Dimension {
		return nil, fmt.Errorf("查询向量维度不匹配: 期望 %d, 实际 %d", idx.info.Dimension, len(query))
	}

	results := make([]*SearchResult, 0, len(idx.vectors))
	for _, v := range idx.vectors {
		if options != nil && v.ID == options.ExcludeID {
			continue
		}
		score := similarity(query, v.Values, idx.info.Distance)
		if options != nil && options.Threshold > 0 && score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{ID: v.ID, Score: score, Metadata: v.Metadata})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k := options.topK(); len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get 获取向量
func (s *MemoryStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	v, ok := idx.vectors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVectorNotFound, id)
	}
	return v, nil
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	return nil
}

// similarity 相似度，越大越相似；欧氏距离取 1/(1+d)
func similarity(a, b []float32, distance string) float64 {
	if distance == "euclidean" {
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
