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
	"sort"
	"strings"

	"keyframe-search/internal/pipeline/common"
	pkgerrors "keyframe-search/pkg/errors"
)

// Subsets 命名子集 -> 视频名前缀列表；前缀为空表示不过滤
type Subsets map[string][]string

// ParseSubsets 由配置（子集名 -> 逗号分隔前缀）构造 Subsets
func ParseSubsets(raw map[string]string) Subsets {
	out := make(Subsets, len(raw))
	for name, value := range raw {
		out[name] = SplitPrefixes(value)
	}
	return out
}

// SplitPrefixes 解析 "L21,L22,K0" 形式的前缀列表
func SplitPrefixes(value string) []string {
	var prefixes []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// Names 子集名（排序后）
func (s Subsets) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Prefixes 查找子集前缀
func (s Subsets) Prefixes(name string) ([]string, error) {
	p, ok := s[name]
	if !ok {
		return nil, pkgerrors.InvalidArgf("unknown subset %q", name)
	}
	return p, nil
}

// FilterByPrefixes 保留视频名以任一前缀开头的帧，保持顺序；前缀为空时原样返回
func FilterByPrefixes(frames []common.FrameIdentity, prefixes []string) []common.FrameIdentity {
	if len(prefixes) == 0 {
		return frames
	}
	out := make([]common.FrameIdentity, 0, len(frames))
	for _, f := range frames {
		for _, p := range prefixes {
			if strings.HasPrefix(f.VideoName, p) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
