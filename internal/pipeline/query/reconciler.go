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

import "keyframe-search/internal/pipeline/common"

// ResultSet 有序去重的关键帧集合；顺序来自第一个贡献结果的阶段
type ResultSet struct {
	frames []common.FrameIdentity
	index  map[common.FrameIdentity]struct{}
}

// NewResultSet 按首次出现去重并保持顺序
func NewResultSet(frames []common.FrameIdentity) *ResultSet {
	rs := &ResultSet{
		frames: make([]common.FrameIdentity, 0, len(frames)),
		index:  make(map[common.FrameIdentity]struct{}, len(frames)),
	}
	for _, f := range frames {
		if _, dup := rs.index[f]; dup {
			continue
		}
		rs.index[f] = struct{}{}
		rs.frames = append(rs.frames, f)
	}
	return rs
}

// Len 集合大小
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.frames)
}

// Contains O(1) 成员判断
func (rs *ResultSet) Contains(f common.FrameIdentity) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.index[f]
	return ok
}

// Frames 返回有序结果的拷贝
func (rs *ResultSet) Frames() []common.FrameIdentity {
	if rs == nil {
		return []common.FrameIdentity{}
	}
	out := make([]common.FrameIdentity, len(rs.frames))
	copy(out, rs.frames)
	return out
}

// Intersect 保留同时出现在 rs 与 other 中的帧，顺序沿用 rs
func (rs *ResultSet) Intersect(other []common.FrameIdentity) *ResultSet {
	incoming := make(map[common.FrameIdentity]struct{}, len(other))
	for _, f := range other {
		incoming[f] = struct{}{}
	}
	next := &ResultSet{
		frames: make([]common.FrameIdentity, 0, min(len(rs.frames), len(incoming))),
		index:  make(map[common.FrameIdentity]struct{}),
	}
	for _, f := range rs.frames {
		if _, ok := incoming[f]; ok {
			next.frames = append(next.frames, f)
			next.index[f] = struct{}{}
		}
	}
	return next
}

// Fold 把一个阶段的输出并入当前结果。
// base 为 nil 表示尚未播种，此时直接以该阶段输出（去重、保序）作为结果；
// 否则求交集。返回的 exhausted 表示结果已为空，后续阶段无需再执行。
// base 不会被修改。
func Fold(base *ResultSet, stageOutput []common.FrameIdentity) (next *ResultSet, exhausted bool) {
	if base == nil {
		next = NewResultSet(stageOutput)
	} else {
		next = base.Intersect(stageOutput)
	}
	return next, next.Len() == 0
}
