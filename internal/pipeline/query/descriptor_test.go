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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe-search/internal/pipeline/common"
)

func decode(t *testing.T, body string) []Stage {
	t.Helper()
	var ds []Descriptor
	require.NoError(t, json.Unmarshal([]byte(body), &ds))
	stages, err := DecodeStages(ds)
	require.NoError(t, err)
	return stages
}

func TestDecodeStages_AllTypes(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("jpeg"))
	stages := decode(t, `[
		{"type":"text","queryData":{"text":"a man riding a bike"},"topK":"32"},
		{"type":"image","args":{"image":"data:image/jpeg;base64,`+img+`","top_k":20}},
		{"type":"image","queryData":{"image_url":"https://cdn/x.jpg"},"topk":16},
		{"type":"keyframes","queryData":{"image_id_query":"L01_V001-012.jpg"},"topK":16},
		{"type":"scenes","queryData":{"query":"stadium"},"topK":16},
		{"type":"asr","queryData":{"text_query":"hello"},"topK":16},
		{"type":"objects","queryData":{"objects":{"car":"2","person":0}}},
		{"type":"objects","queryData":{"dog":1.0}},
		{"type":"metadata","queryData":{"videoNames":["L01_V001"],"startDate":"2024-01-01"}},
		{"type":"ocr","queryData":{"text":"sign"}}
	]`)
	require.Len(t, stages, 10)

	assert.Equal(t, TextStage{Query: "a man riding a bike", TopK: 32}, stages[0])
	assert.Equal(t, ImageStage{ImageData: []byte("jpeg"), TopK: 20}, stages[1])
	assert.Equal(t, ImageStage{ImageURL: "https://cdn/x.jpg", TopK: 16}, stages[2])
	assert.Equal(t, KeyframesStage{ImageIDQuery: "L01_V001-012.jpg", TopK: 16}, stages[3])
	assert.Equal(t, ScenesStage{Query: "stadium", TopK: 16}, stages[4])
	assert.Equal(t, ASRStage{Query: "hello", TopK: 16}, stages[5])
	assert.Equal(t, ObjectsStage{Spec: ObjectCountSpec{"car": 2, "person": 0}}, stages[6])
	assert.Equal(t, ObjectsStage{Spec: ObjectCountSpec{"dog": 1}}, stages[7])
	assert.Equal(t, MetadataStage{VideoNames: []string{"L01_V001"}, StartDate: "2024-01-01"}, stages[8])
	assert.Equal(t, UnsupportedStage{Name: "ocr"}, stages[9])
}

func TestDecodeStages_UnparseableTopKIsZero(t *testing.T) {
	stages := decode(t, `[{"type":"text","queryData":{"text":"car"},"topK":"many"}]`)
	assert.Equal(t, TextStage{Query: "car"}, stages[0])
	assert.Error(t, NewValidator(0).Validate(stages[0]))
}

func TestDecodeStages_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		index int
	}{
		{"missing type", `[{"queryData":{"text":"car"}}]`, 0},
		{"payload not object", `[{"type":"text","queryData":{"text":"a"},"topK":16},{"type":"text","queryData":"car"}]`, 1},
		{"bad count", `[{"type":"objects","queryData":{"objects":{"car":"two"}}}]`, 0},
		{"negative fractional count", `[{"type":"objects","queryData":{"person":-0.5}}]`, 0},
		{"fractional count", `[{"type":"text","queryData":{"text":"a"},"topK":16},{"type":"objects","queryData":{"objects":{"car":1.5}}}]`, 1},
		{"bad image", `[{"type":"image","queryData":{"image":"%%%"}}]`, 0},
		{"bad video names", `[{"type":"metadata","queryData":{"videoNames":"L01"}}]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ds []Descriptor
			require.NoError(t, json.Unmarshal([]byte(tt.body), &ds))
			_, err := DecodeStages(ds)
			ve, ok := common.GetValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.index, ve.Index)
		})
	}
}

func TestDescriptor_RejectsNonObject(t *testing.T) {
	var ds []Descriptor
	assert.Error(t, json.Unmarshal([]byte(`["text"]`), &ds))
}

func TestParseFlexInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{`3`, 3, true},
		{`"7"`, 7, true},
		{`2.9`, 2, true},
		{`" 4 "`, 4, true},
		{`"x"`, 0, false},
		{`null`, 0, false},
		{``, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseFlexInt(json.RawMessage(tt.raw))
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{`2`, 2, true},
		{`"0"`, 0, true},
		{`3.0`, 3, true},
		{`-0.5`, 0, false},
		{`1.5`, 0, false},
		{`"1.7"`, 0, false},
		{`null`, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCount(json.RawMessage(tt.raw))
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
	}
}
