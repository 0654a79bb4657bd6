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

// CountDetections 按类别统计一帧内的检测数
func CountDetections(objects []common.Detection) map[string]int {
	counts := make(map[string]int, len(objects))
	for _, o := range objects {
		counts[o.ClassName]++
	}
	return counts
}

// MatchesObjectCounts 判断一帧的检测多重集是否满足 spec。
// 所有类别都必须出现；期望数为 0 时只要求出现，大于 0 时要求数量完全相等。
func MatchesObjectCounts(detected map[string]int, spec ObjectCountSpec) bool {
	for class, expected := range spec {
		actual := detected[class]
		if actual == 0 {
			return false
		}
		if expected == 0 {
			continue
		}
		if actual != expected {
			return false
		}
	}
	return true
}

// FilterByObjectCounts 在存储层 AND 预过滤结果上做精确计数过滤，保持输入顺序
func FilterByObjectCounts(frames []common.FrameDetections, spec ObjectCountSpec) []common.FrameIdentity {
	out := make([]common.FrameIdentity, 0, len(frames))
	for _, f := range frames {
		if MatchesObjectCounts(CountDetections(f.Objects), spec) {
			out = append(out, f.Frame)
		}
	}
	return out
}
