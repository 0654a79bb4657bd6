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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FrameIdentity 关键帧身份：视频名 + 规范化帧名。
// 结构体可直接比较，作为去重与求交的键。
type FrameIdentity struct {
	VideoName string `json:"videoName"`
	FrameName string `json:"frameName"`
}

// NormalizeFrameName 去掉 .jpg 后缀与前导零："007.jpg" -> "7"，"000" -> "0"。
// 非数字帧名只去后缀，按字符串比较。
func NormalizeFrameName(name string) string {
	s := strings.TrimSpace(name)
	if len(s) >= 4 && strings.EqualFold(s[len(s)-4:], ".jpg") {
		s = s[:len(s)-4]
	}
	if s == "" {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// NewFrameIdentity 构造规范化后的 FrameIdentity
func NewFrameIdentity(videoName, frameName string) FrameIdentity {
	return FrameIdentity{
		VideoName: strings.TrimSpace(videoName),
		FrameName: NormalizeFrameName(frameName),
	}
}

// FrameFromOrdinal 由帧序号构造 FrameIdentity
func FrameFromOrdinal(videoName string, n int) FrameIdentity {
	return NewFrameIdentity(videoName, strconv.Itoa(n))
}

// Ordinal 返回数字帧序号；非数字帧名返回 false
func (f FrameIdentity) Ordinal() (int, bool) {
	n, err := strconv.Atoi(f.FrameName)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FrameFile 关键帧文件名，如 "007.jpg"
func (f FrameIdentity) FrameFile() string {
	if n, ok := f.Ordinal(); ok {
		return fmt.Sprintf("%03d.jpg", n)
	}
	return f.FrameName + ".jpg"
}

// KeyframeID "VIDEO-FRAME" 形式的关键帧 id
func (f FrameIdentity) KeyframeID() string {
	return f.VideoName + "-" + f.FrameName
}

// String 实现 fmt.Stringer
func (f FrameIdentity) String() string {
	return f.VideoName + ":" + f.FrameName
}

// ParseKeyframeID 解析 "VIDEO-FRAME" 关键帧 id，按第一个 "-" 切分
func ParseKeyframeID(id string) (FrameIdentity, error) {
	video, frame, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok || video == "" || frame == "" {
		return FrameIdentity{}, fmt.Errorf("invalid keyframe id %q", id)
	}
	return NewFrameIdentity(video, frame), nil
}

// UnmarshalJSON 兼容 frameName 为数字或字符串，解码后自动规范化
func (f *FrameIdentity) UnmarshalJSON(data []byte) error {
	var raw struct {
		VideoName string          `json:"videoName"`
		FrameName json.RawMessage `json:"frameName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	frame, err := decodeFrameName(raw.FrameName)
	if err != nil {
		return err
	}
	*f = NewFrameIdentity(raw.VideoName, frame)
	return nil
}

func decodeFrameName(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("frameName must be a string or integer: %s", raw)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return "", fmt.Errorf("frameName must be an integer: %s", raw)
}
