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
	"fmt"
	"strings"
	"time"
)

// Type 阶段类型标签
type Type string

const (
	TypeText      Type = "text"
	TypeImage     Type = "image"
	TypeObjects   Type = "objects"
	TypeMetadata  Type = "metadata"
	TypeKeyframes Type = "keyframes"
	TypeScenes    Type = "scenes"
	TypeASR       Type = "asr"
)

// Stage 多阶段查询中的一个阶段。
// 具体类型集合是封闭的：只有本包内的结构体实现 Stage，
// 校验器与派发器都按同一集合做类型分支。
type Stage interface {
	Type() Type
	sealed()
}

// TextStage 文本向量检索
type TextStage struct {
	Query string
	TopK  int
}

// ImageStage 图片向量检索；ImageData 与 ImageURL 二选一
type ImageStage struct {
	ImageData []byte
	ImageURL  string
	TopK      int
}

// KeyframesStage 关键帧检索：按已有关键帧 id 找相似帧，或按文本检索
type KeyframesStage struct {
	ImageIDQuery string
	TextQuery    string
	TopK         int
}

// ScenesStage 场景描述检索
type ScenesStage struct {
	Query string
	TopK  int
}

// ASRStage 语音转写文本检索
type ASRStage struct {
	Query string
	TopK  int
}

// ObjectCountSpec 类别 -> 期望数量；0 表示仅要求出现
type ObjectCountSpec map[string]int

// ObjectsStage 目标检测过滤
type ObjectsStage struct {
	Spec ObjectCountSpec
}

// MetadataStage 视频元数据过滤；日期为 "2006-01-02" 或 RFC3339
type MetadataStage struct {
	VideoNames []string
	StartDate  string
	EndDate    string
}

// Range 解析起止日期；结束日期只给到天时包含当天全天
func (s MetadataStage) Range() (from, to *time.Time, err error) {
	if from, _, err = parseDate("startDate", s.StartDate); err != nil {
		return nil, nil, err
	}
	var dayOnly bool
	if to, dayOnly, err = parseDate("endDate", s.EndDate); err != nil {
		return nil, nil, err
	}
	if to != nil && dayOnly {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	return from, to, nil
}

func parseDate(field, s string) (*time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false, fmt.Errorf("%s must be YYYY-MM-DD or RFC3339, got %q", field, s)
	}
	return &t, false, nil
}

// UnsupportedStage 无法识别的阶段类型，保留原始标签用于报错与告警
type UnsupportedStage struct {
	Name string
}

func (TextStage) Type() Type { return TypeText }
func (ImageStage) Type() Type { return TypeImage }
func (KeyframesStage) Type() Type { return TypeKeyframes }
func (ScenesStage) Type() Type { return TypeScenes }
func (ASRStage) Type() Type { return TypeASR }
func (ObjectsStage) Type() Type { return TypeObjects }
func (MetadataStage) Type() Type { return TypeMetadata }
func (s UnsupportedStage) Type() Type { return Type(s.Name) }

func (TextStage) sealed() {}
func (ImageStage) sealed() {}
func (KeyframesStage) sealed() {}
func (ScenesStage) sealed() {}
func (ASRStage) sealed() {}
func (ObjectsStage) sealed() {}
func (MetadataStage) sealed() {}
func (UnsupportedStage) sealed() {}

// tier 调度层级：local 为本地存储查询，remote 为共享的 CLIP 检索服务
type tier int

const (
	tierLocal tier = iota
	tierRemote
)

func (t tier) String() string {
	if t == tierRemote {
		return "remote"
	}
	return "local"
}

func tierOf(s Stage) tier {
	switch s.(type) {
	case TextStage, ImageStage, KeyframesStage, ScenesStage, ASRStage:
		return tierRemote
	default:
		return tierLocal
	}
}
