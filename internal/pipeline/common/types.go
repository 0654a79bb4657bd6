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

import "time"

// Detection 单个目标检测结果
type Detection struct {
	ClassName  string     `json:"className"`
	Confidence float64    `json:"confidence"`
	XYWHN      [4]float64 `json:"xywhn"` // 归一化中心点与宽高
}

// FrameDetections 一帧的全部检测结果
type FrameDetections struct {
	Frame   FrameIdentity `json:"frame"`
	Objects []Detection   `json:"objects"`
}

// ClassCount 类别及其检测数
type ClassCount struct {
	ClassName string `json:"className"`
	Count     int    `json:"count"`
}

// FrameData 视频内一帧的时间信息
type FrameData struct {
	N        int     `json:"n"`
	PtsTime  float64 `json:"ptsTime"`
	FPS      float64 `json:"fps"`
	FrameIdx int     `json:"frameIdx"`
}

// VideoMetadata 视频元数据
type VideoMetadata struct {
	VideoName    string      `json:"videoName"`
	Title        string      `json:"title,omitempty"`
	Author       string      `json:"author,omitempty"`
	Description  string      `json:"description,omitempty"`
	Keywords     []string    `json:"keywords,omitempty"`
	Length       int         `json:"length,omitempty"` // 秒
	PublishDate  time.Time   `json:"publishDate"`
	WatchURL     string      `json:"watchUrl,omitempty"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	FrameData    []FrameData `json:"frameData,omitempty"`
}

// MetadataFilter 元数据过滤条件；空字段不参与过滤
type MetadataFilter struct {
	VideoNames []string
	From       *time.Time // publishDate >= From
	To         *time.Time // publishDate <= To
}

// Match 判断单个视频是否满足过滤条件
func (f MetadataFilter) Match(v VideoMetadata) bool {
	if len(f.VideoNames) > 0 {
		found := false
		for _, name := range f.VideoNames {
			if name == v.VideoName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && v.PublishDate.Before(*f.From) {
		return false
	}
	if f.To != nil && v.PublishDate.After(*f.To) {
		return false
	}
	return true
}
