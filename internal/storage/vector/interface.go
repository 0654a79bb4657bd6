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
	"errors"
)

// ErrIndexNotFound 索引不存在
var ErrIndexNotFound = errors.New("vector index not found")

// ErrVectorNotFound 向量不存在
var ErrVectorNotFound = errors.New("vector not found")

// Store 关键帧向量存储
type Store interface {
	// Create 创建索引
	Create(ctx context.Context, index *Index) error
	// ListIndexes 列出所有索引
	ListIndexes(ctx context.Context) ([]string, error)
	// Add 写入向量，同 ID 覆盖
	Add(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 相似度检索，结果按得分降序
	Search(ctx context.Context, indexName string, query []float32, options *SearchOptions) ([]*SearchResult, error)
	// Get 根据 ID 获取向量
	Get(ctx context.Context, indexName string, id string) (*Vector, error)
	// Close 关闭存储连接
	Close() error
}

// 关键帧向量的元数据键
const (
	MetaVideoName = "videoName"
	MetaFrameName = "frameName"
)

// Index 向量索引
type Index struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Distance  string `json:"distance"` // cosine | euclidean
}

// Vector 向量数据，ID 为关键帧 id（VIDEO-FRAME）
type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"` // 相似度下限，0 表示不过滤
	// ExcludeID 排除的向量 ID，以帧搜帧时用于去掉查询帧本身
	ExcludeID string `json:"exclude_id"`
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

func (o *SearchOptions) topK() int {
	if o == nil || o.TopK <= 0 {
		return 10
	}
	return o.TopK
}
