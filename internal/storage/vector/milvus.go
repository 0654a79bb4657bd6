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
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// milvus 集合字段
const (
	milvusFieldID     = "id"
	milvusFieldVideo  = "video_name"
	milvusFieldFrame  = "frame_name"
	milvusFieldVector = "vector"
)

// MilvusStore 基于 Milvus 的向量存储，每个索引对应一个集合。
// 距离度量记录在集合描述中（"distance=cosine"）。
type MilvusStore struct {
	mc client.Client
}

// NewMilvusStore 连接 Milvus
func NewMilvusStore(ctx context.Context, addr string) (*MilvusStore, error) {
	mc, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	return &MilvusStore{mc: mc}, nil
}

func milvusMetric(distance string) entity.MetricType {
	if distance == "euclidean" {
		return entity.L2
	}
	return entity.COSINE
}

// Create 创建集合、HNSW 索引并加载
func (s *MilvusStore) Create(ctx context.Context, idx *Index) error {
	has, err := s.mc.HasCollection(ctx, idx.Name)
	if err != nil {
		return fmt.Errorf("has collection: %w", err)
	}
	if has {
		return fmt.Errorf("索引已存在: %s", idx.Name)
	}
	distance := idx.Distance
	if distance == "" {
		distance = "cosine"
	}
	schema := entity.NewSchema().WithName(idx.Name).WithDescription("distance=" + distance)
	schema.WithField(entity.NewField().WithName(milvusFieldID).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName(milvusFieldVideo).WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
	schema.WithField(entity.NewField().WithName(milvusFieldFrame).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName(milvusFieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(idx.Dimension)))
	if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	hnsw, err := entity.NewIndexHNSW(milvusMetric(distance), 8, 200)
	if err != nil {
		return fmt.Errorf("new index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, idx.Name, milvusFieldVector, hnsw, false); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, idx.Name, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

// ListIndexes 列出集合
func (s *MilvusStore) ListIndexes(ctx context.Context) ([]string, error) {
	colls, err := s.mc.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(colls))
	for _, c := range colls {
		names = append(names, c.Name)
	}
	return names, nil
}

// describe 读取集合维度与距离度量
func (s *MilvusStore) describe(ctx context.Context, name string) (*Index, error) {
	has, err := s.mc.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	coll, err := s.mc.DescribeCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	idx := &Index{Name: name, Distance: "cosine"}
	if coll.Schema != nil {
		if d, ok := strings.CutPrefix(coll.Schema.Description, "distance="); ok && d != "" {
			idx.Distance = d
		}
		for _, f := range coll.Schema.Fields {
			if f.Name == milvusFieldVector {
				idx.Dimension, _ = strconv.Atoi(f.TypeParams[entity.TypeParamDim])
			}
		}
	}
	return idx, nil
}

// Add 以 upsert 写入
func (s *MilvusStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	idx, err := s.describe(ctx, indexName)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(vectors))
	videos := make([]string, 0, len(vectors))
	frames := make([]string, 0, len(vectors))
	values := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		if len(v.Values) != idx.Dimension {
			return fmt.Errorf("向量 %s 维度不匹配: 期望 %d, 实际 %d", v.ID, idx.Dimension, len(v.Values))
		}
		ids = append(ids, v.ID)
		videos = append(videos, v.Metadata[MetaVideoName])
		frames = append(frames, v.Metadata[MetaFrameName])
		values = append(values, v.Values)
	}
	_, err = s.mc.Upsert(ctx, indexName, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnVarChar(milvusFieldVideo, videos),
		entity.NewColumnVarChar(milvusFieldFrame, frames),
		entity.NewColumnFloatVector(milvusFieldVector, idx.Dimension, values),
	)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Search HNSW 检索；L2 距离换算为 1/(1+d)
func (s *MilvusStore) Search(ctx context.Context, indexName string, query []float32, options *SearchOptions) ([]*SearchResult, error) {
	idx, err := s.describe(ctx, indexName)
	if err != nil {
		return nil, err
	}
	if len(query) != idx.Dimension {
		return nil, fmt.Errorf("查询向量维度不匹配: 期望 %d, 实际 %d", idx.Dimension, len(query))
	}
	filter := ""
	if options != nil && options.ExcludeID != "" {
		filter = fmt.Sprintf("%s != %s", milvusFieldID, strconv.Quote(options.ExcludeID))
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	metric := milvusMetric(idx.Distance)
	res, err := s.mc.Search(ctx, indexName, []string{}, filter,
		[]string{milvusFieldVideo, milvusFieldFrame},
		[]entity.Vector{entity.FloatVector(query)}, milvusFieldVector, metric, options.topK(), sp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var results []*SearchResult
	for _, r := range res {
		ids, _ := r.IDs.(*entity.ColumnVarChar)
		cols := map[string]*entity.ColumnVarChar{}
		for _, f := range r.Fields {
			if c, ok := f.(*entity.ColumnVarChar); ok {
				cols[f.Name()] = c
			}
		}
		for i := 0; i < r.ResultCount; i++ {
			score := float64(r.Scores[i])
			if metric == entity.L2 {
				score = 1 / (1 + score)
			}
			if options != nil && options.Threshold > 0 && score < options.Threshold {
				continue
			}
			item := &SearchResult{Score: score, Metadata: map[string]string{}}
			if ids != nil && i < len(ids.Data()) {
				item.ID = ids.Data()[i]
			}
			if c := cols[milvusFieldVideo]; c != nil && i < len(c.Data()) {
				item.Metadata[MetaVideoName] = c.Data()[i]
			}
			if c := cols[milvusFieldFrame]; c != nil && i < len(c.Data()) {
				item.Metadata[MetaFrameName] = c.Data()[i]
			}
			results = append(results, item)
		}
	}
	return results, nil
}

// Get 按主键查询向量
func (s *MilvusStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	expr := fmt.Sprintf("%s in [%s]", milvusFieldID, strconv.Quote(id))
	rs, err := s.mc.Query(ctx, indexName, []string{}, expr,
		[]string{milvusFieldID, milvusFieldVideo, milvusFieldFrame, milvusFieldVector})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	vecs, _ := rs.GetColumn(milvusFieldVector).(*entity.ColumnFloatVector)
	if vecs == nil || len(vecs.Data()) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVectorNotFound, id)
	}
	v := &Vector{ID: id, Values: vecs.Data()[0], Metadata: map[string]string{}}
	if c, ok := rs.GetColumn(milvusFieldVideo).(*entity.ColumnVarChar); ok && len(c.Data()) > 0 {
		v.Metadata[MetaVideoName] = c.Data()[0]
	}
	if c, ok := rs.GetColumn(milvusFieldFrame).(*entity.ColumnVarChar); ok && len(c.Data()) > 0 {
		v.Metadata[MetaFrameName] = c.Data()[0]
	}
	return v, nil
}

// Close 关闭连接
func (s *MilvusStore) Close() error {
	return s.mc.Close()
}
