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
	"unicode"

	"keyframe-search/internal/pipeline/common"
)

// VideoGroup 按视频分组的结果
type VideoGroup struct {
	VideoName string                 `json:"videoName"`
	Count     int                    `json:"count"`
	Frames    []common.FrameIdentity `json:"frames"`
}

// GroupByVideo 按视频名分组；组内按帧号升序，组间按视频名自然序（不区分大小写）
func GroupByVideo(frames []common.FrameIdentity) []VideoGroup {
	idx := make(map[string]int)
	var groups []VideoGroup
	for _, f := range frames {
		key := f.VideoName
		if key == "" {
			key = "(unknown)"
		}
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, VideoGroup{VideoName: key})
		}
		groups[i].Frames = append(groups[i].Frames, f)
	}
	for i := range groups {
		g := &groups[i]
		sort.SliceStable(g.Frames, func(a, b int) bool {
			return frameLess(g.Frames[a], g.Frames[b])
		})
		g.Count = len(g.Frames)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return naturalLess(groups[a].VideoName, groups[b].VideoName)
	})
	return groups
}

func frameLess(a, b common.FrameIdentity) bool {
	an, aok := a.Ordinal()
	bn, bok := b.Ordinal()
	if aok && bok {
		return an < bn
	}
	return naturalLess(a.FrameName, b.FrameName)
}

// naturalLess 自然序比较："L2" < "L10"，字母部分不区分大小写
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		ca, cb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			na, ra := leadingDigits(a)
			nb, rb := leadingDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			a, b = ra, rb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
