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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"keyframe-search/internal/pipeline/common"
)

// Descriptor 阶段的 JSON 描述：{type, queryData|args, topK|topk|top_k}
type Descriptor struct {
	Type    string
	Payload map[string]json.RawMessage
	TopK    json.RawMessage

	payloadErr error
}

// UnmarshalJSON 兼容 queryData 与 args 两种载荷字段
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("stage descriptor must be an object: %w", err)
	}
	*d = Descriptor{}
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &d.Type); err != nil {
			return fmt.Errorf("stage type must be a string")
		}
	}
	for _, k := range []string{"topK", "topk", "top_k"} {
		if v, ok := raw[k]; ok {
			d.TopK = v
			break
		}
	}
	payload, ok := raw["args"]
	if !ok || isNull(payload) {
		payload = raw["queryData"]
	}
	if len(payload) > 0 && !isNull(payload) {
		if err := json.Unmarshal(payload, &d.Payload); err != nil {
			d.payloadErr = fmt.Errorf("payload must be an object")
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// DecodeStages 将描述列表转为 Stage；载荷结构错误返回带序号的 ValidationError
func DecodeStages(descriptors []Descriptor) ([]Stage, error) {
	stages := make([]Stage, 0, len(descriptors))
	for i, d := range descriptors {
		s, err := d.Stage(i)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Stage 将单个描述转为 Stage；index 仅用于错误信息
func (d Descriptor) Stage(index int) (Stage, error) {
	typ := strings.TrimSpace(d.Type)
	fail := func(format string, args ...any) error {
		return common.NewValidationError(index, typ, fmt.Sprintf(format, args...))
	}
	if typ == "" {
		return nil, fail("stage type is required")
	}
	if d.payloadErr != nil {
		return nil, fail("%v", d.payloadErr)
	}

	topK := d.topK()
	switch Type(typ) {
	case TypeText:
		return TextStage{Query: d.str("text", "query", "text_query"), TopK: topK}, nil
	case TypeImage:
		s := ImageStage{TopK: topK, ImageURL: d.str("image_url")}
		data, url, err := decodeImage(d.str("image_base64", "image"))
		if err != nil {
			return nil, fail("%v", err)
		}
		if url != "" && s.ImageURL == "" {
			s.ImageURL = url
		}
		s.ImageData = data
		return s, nil
	case TypeKeyframes:
		return KeyframesStage{
			ImageIDQuery: d.str("image_id_query"),
			TextQuery:    d.str("text_query"),
			TopK:         topK,
		}, nil
	case TypeScenes:
		return ScenesStage{Query: d.str("query", "text_query"), TopK: topK}, nil
	case TypeASR:
		return ASRStage{Query: d.str("query", "text_query"), TopK: topK}, nil
	case TypeObjects:
		spec, err := d.objectSpec()
		if err != nil {
			return nil, fail("%v", err)
		}
		return ObjectsStage{Spec: spec}, nil
	case TypeMetadata:
		s := MetadataStage{StartDate: d.str("startDate"), EndDate: d.str("endDate")}
		if raw, ok := d.Payload["videoNames"]; ok && !isNull(raw) {
			if err := json.Unmarshal(raw, &s.VideoNames); err != nil {
				return nil, fail("videoNames must be an array of strings")
			}
		}
		return s, nil
	default:
		return UnsupportedStage{Name: typ}, nil
	}
}

// topK 载荷内的 top_k 优先于描述顶层的 topK；无法解析时为 0
func (d Descriptor) topK() int {
	for _, k := range []string{"top_k", "topk", "topK"} {
		if v, ok := d.Payload[k]; ok {
			n, _ := parseFlexInt(v)
			return n
		}
	}
	n, _ := parseFlexInt(d.TopK)
	return n
}

// str 返回第一个存在的字符串字段
func (d Descriptor) str(keys ...string) string {
	for _, k := range keys {
		raw, ok := d.Payload[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// objectSpec 载荷可以是 {objects: {...}} 或直接是类别映射
func (d Descriptor) objectSpec() (ObjectCountSpec, error) {
	src, direct := d.Payload, true
	if raw, ok := d.Payload["objects"]; ok {
		src, direct = nil, false
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, fmt.Errorf("objects must be a mapping of class name to count")
		}
	}
	spec := make(ObjectCountSpec, len(src))
	for class, raw := range src {
		if direct && (class == "top_k" || class == "topk" || class == "topK") {
			continue
		}
		n, ok := parseCount(raw)
		if !ok {
			return nil, fmt.Errorf("count for %q must be an integer", class)
		}
		spec[class] = n
	}
	return spec, nil
}

// parseFlexInt 接受 JSON 数字或数字字符串，小数向零截断
func parseFlexInt(raw json.RawMessage) (int, bool) {
	f, ok := parseFlexFloat(raw)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// parseCount 类别数量须为整数，小数直接拒绝
func parseCount(raw json.RawMessage) (int, bool) {
	f, ok := parseFlexFloat(raw)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseFlexFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// decodeImage 识别 http(s) 地址、data URL 与裸 base64
func decodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", nil
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return nil, s, nil
	}
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed image data URL")
		}
		s = after
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("image must be an http(s) URL or base64 data")
	}
	return data, "", nil
}
