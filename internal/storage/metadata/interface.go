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


// Package metadata 视频元数据存储：标题、发布日期与逐帧时间信息
package metadata

import (
	"context"

	"keyframe-search/internal/pipeline/common"
)

// Store 视频元数据存储
type Store interface {
	// QueryVideos 按过滤条件返回视频（含逐帧数据），按视频名排序
	QueryVideos(ctx context.Context, filter common.MetadataFilter) ([]common.VideoMetadata, error)
	// ListVideos 返回全部视频名
	ListVideos(ctx context.Context) ([]string, error)
	// GetVideo 获取单个视频元数据，不存在返回 ErrNotFound
	GetVideo(ctx context.Context, videoName string) (*common.VideoMetadata, error)
	// GetFrame 获取视频内第 n 帧的时间信息，不存在返回 ErrNotFound
	GetFrame(ctx context.Context, videoName string, n int) (*common.FrameData, error)
	// Put 写入（覆盖）一个视频的元数据
	Put(ctx context.Context, v common.VideoMetadata) error
	// Close 关闭存储连接
	Close() error
}
