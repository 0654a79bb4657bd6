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


// Package objects 目标检测结果存储：按帧记录检测到的类别、置信度与框
package objects

import (
	"context"

	"keyframe-search/internal/pipeline/common"
)

// Store 目标检测存储
type Store interface {
	// FramesWithAllClasses 返回同时包含所有给定类别的帧及其全部检测结果
	FramesWithAllClasses(ctx context.Context, classes []string) ([]common.FrameDetections, error)
	// FrameDetections 返回单帧检测结果；帧不存在时返回空列表
	FrameDetections(ctx context.Context, frame common.FrameIdentity) ([]common.Detection, error)
	// ClassCounts 各类别的检测总数，按类别名排序
	ClassCounts(ctx context.Context) ([]common.ClassCount, error)
	// Put 写入（覆盖）一帧的检测结果
	Put(ctx context.Context, fd common.FrameDetections) error
	// Close 关闭存储连接
	Close() error
}
