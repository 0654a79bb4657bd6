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


package clip

import (
	"context"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"keyframe-search/internal/pipeline/common"
)

// Retriever 把 Client 适配为 eino retriever.Retriever
type Retriever struct {
	client      *Client
	defaultTopK int
}

// NewRetriever 创建 Retriever；defaultTopK 在调用方未指定 TopK 时使用
func NewRetriever(client *Client, defaultTopK int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = 100
	}
	return &Retriever{client: client, defaultTopK: defaultTopK}
}

// Retrieve 实现 github.com/cloudwego/eino/components/retriever.Retriever
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	co := einoretriever.GetCommonOptions(nil, opts...)
	topK := r.defaultTopK
	if co != nil && co.TopK != nil && *co.TopK > 0 {
		topK = *co.TopK
	}
	ro := common.GetRetrievalOptions(opts...)

	hits, err := r.client.Retrieve(ctx, Request{
		Query:     query,
		QueryType: ro.QueryType,
		TopK:      topK,
		Image:     ro.Image,
		ImageURL:  ro.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	docs := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, common.FrameDocument(h.Frame, h.Score))
	}
	return docs, nil
}

