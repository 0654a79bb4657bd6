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
	"errors"
	"fmt"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/storage/vector"
	pkgerrors "keyframe-search/pkg/errors"
)

// SimilarFrameRetriever 以帧搜帧：query 为关键帧 id（VIDEO-FRAME），
// 取出该帧向量后在 vector.Store 中检索近邻，实现 eino retriever.Retriever
type SimilarFrameRetriever struct {
	vectorStore      vector.Store
	defaultIndex     string
	defaultTopK      int
	defaultThreshold float64
}

// SimilarFrameRetrieverConfig SimilarFrameRetriever 构造参数
type SimilarFrameRetrieverConfig struct {
	VectorStore      vector.Store
	DefaultIndex     string
	DefaultTopK      int
	DefaultThreshold float64
}

// NewSimilarFrameRetriever 创建基于 vector.Store 的以帧搜帧 Retriever
func NewSimilarFrameRetriever(cfg *SimilarFrameRetrieverConfig) (*SimilarFrameRetriever, error) {
	if cfg == nil || cfg.VectorStore == nil {
		return nil, fmt.Errorf("SimilarFrameRetriever requires VectorStore")
	}
	idx := cfg.DefaultIndex
	if idx == "" {
		idx = "keyframes"
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = DefaultMinTopK
	}
	return &SimilarFrameRetriever{
		vectorStore:      cfg.VectorStore,
		defaultIndex:     idx,
		defaultTopK:      topK,
		defaultThreshold: cfg.DefaultThreshold,
	}, nil
}

// Retrieve 实现 github.com/cloudwego/eino/components/retriever.Retriever。
// 结果按相似度降序，不含查询帧本身。
func (r *SimilarFrameRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(nil, opts...)
	if options == nil {
		options = &einoretriever.Options{}
	}
	indexName := r.defaultIndex
	if options.Index != nil && *options.Index != "" {
		indexName = *options.Index
	}
	topK := r.defaultTopK
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := r.defaultThreshold
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}

	anchor, err := common.ParseKeyframeID(query)
	if err != nil {
		return nil, err
	}
	id := anchor.KeyframeID()
	src, err := r.vectorStore.Get(ctx, indexName, id)
	if errors.Is(err, vector.ErrVectorNotFound) {
		return nil, pkgerrors.NotFoundf("keyframe %s has no embedding", id)
	}
	if err != nil {
		return nil, fmt.Errorf("vector store get: %w", err)
	}

	results, err := r.vectorStore.Search(ctx, indexName, src.Values, &vector.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
		ExcludeID: id,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store search: %w", err)
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, sr := range results {
		f, ok := frameOf(sr)
		if !ok {
			continue
		}
		docs = append(docs, common.FrameDocument(f, sr.Score))
	}
	return docs, nil
}

func frameOf(sr *vector.SearchResult) (common.FrameIdentity, bool) {
	video, frame := sr.Metadata[vector.MetaVideoName], sr.Metadata[vector.MetaFrameName]
	if video != "" && frame != "" {
		return common.NewFrameIdentity(video, frame), true
	}
	f, err := common.ParseKeyframeID(sr.ID)
	return f, err == nil
}
