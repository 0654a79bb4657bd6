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

package common

import (
	"fmt"
	"strconv"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// 排序检索的查询类型
const (
	QueryTypeText    = "text"
	QueryTypeImage   = "image"
	QueryTypeImageID = "image_id"
	QueryTypeScenes  = "scenes"
	QueryTypeASR     = "asr"
)

// 文档元数据键
const (
	MetaVideoName = "videoName"
	MetaFrameName = "frameName"
)

// RetrievalOptions 关键帧检索的实现特定选项，经 eino retriever.Option 传递
type RetrievalOptions struct {
	QueryType string
	Image     []byte
	ImageURL  string
}

// WithQueryType 指定查询类型（text | image | image_id | scenes | asr）
func WithQueryType(queryType string) einoretriever.Option {
	return einoretriever.WrapImplSpecificOptFn(func(o *RetrievalOptions) {
		o.QueryType = queryType
	})
}

// WithImage 以图搜图时附带的图片字节
func WithImage(data []byte) einoretriever.Option {
	return einoretriever.WrapImplSpecificOptFn(func(o *RetrievalOptions) {
		o.Image = data
	})
}

// WithImageURL 以图搜图时的图片地址，由检索端负责下载
func WithImageURL(url string) einoretriever.Option {
	return einoretriever.WrapImplSpecificOptFn(func(o *RetrievalOptions) {
		o.ImageURL = url
	})
}

// GetRetrievalOptions 从 eino Option 中解出 RetrievalOptions，默认 text
func GetRetrievalOptions(opts ...einoretriever.Option) *RetrievalOptions {
	return einoretriever.GetImplSpecificOptions(&RetrievalOptions{QueryType: QueryTypeText}, opts...)
}

// FrameDocument 把关键帧包装为 eino Document
func FrameDocument(f FrameIdentity, score float64) *schema.Document {
	d := &schema.Document{
		ID: f.KeyframeID(),
		MetaData: map[string]any{
			MetaVideoName: f.VideoName,
			MetaFrameName: f.FrameName,
		},
	}
	return d.WithScore(score)
}

// FramesFromDocuments 按原顺序把检索文档转为 FrameIdentity；
// 优先读元数据，缺失时按 "VIDEO-FRAME" 解析文档 id
func FramesFromDocuments(docs []*schema.Document) ([]FrameIdentity, error) {
	out := make([]FrameIdentity, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		video, _ := d.MetaData[MetaVideoName].(string)
		frame := metaString(d.MetaData[MetaFrameName])
		if video != "" && frame != "" {
			out = append(out, NewFrameIdentity(video, frame))
			continue
		}
		f, err := ParseKeyframeID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("document without frame identity: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func metaString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	}
	return ""
}
