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

	"keyframe-search/internal/pipeline/common"
)

// DefaultMinTopK 排序类阶段的 topK 下限
const DefaultMinTopK = 16

// Validator 阶段校验器，无副作用
type Validator struct {
	MinTopK int
}

// NewValidator 创建校验器，minTopK<=0 时使用 DefaultMinTopK
func NewValidator(minTopK int) Validator {
	if minTopK <= 0 {
		minTopK = DefaultMinTopK
	}
	return Validator{MinTopK: minTopK}
}

// Validate 校验单个阶段；合法返回 nil，否则返回可读的错误描述
func (v Validator) Validate(s Stage) error {
	switch st := s.(type) {
	case TextStage:
		if blank(st.Query) {
			return fmt.Errorf("text query is required")
		}
		return v.checkTopK(st.TopK)
	case ImageStage:
		if len(st.ImageData) == 0 && blank(st.ImageURL) {
			return fmt.Errorf("image data or image_url is required")
		}
		return v.checkTopK(st.TopK)
	case KeyframesStage:
		hasImage, hasText := !blank(st.ImageIDQuery), !blank(st.TextQuery)
		if !hasImage && !hasText {
			return fmt.Errorf("provide image_id_query or text_query")
		}
		if hasImage && hasText {
			return fmt.Errorf("only one of image_id_query or text_query is allowed")
		}
		if hasImage {
			if _, err := common.ParseKeyframeID(st.ImageIDQuery); err != nil {
				return fmt.Errorf("image_id_query must look like VIDEO-FRAME")
			}
		}
		return v.checkTopK(st.TopK)
	case ScenesStage:
		if blank(st.Query) {
			return fmt.Errorf("text query is required")
		}
		return v.checkTopK(st.TopK)
	case ASRStage:
		if blank(st.Query) {
			return fmt.Errorf("text query is required")
		}
		return v.checkTopK(st.TopK)
	case ObjectsStage:
		if len(st.Spec) == 0 {
			return fmt.Errorf("objects must name at least one class")
		}
		for class, n := range st.Spec {
			if blank(class) {
				return fmt.Errorf("class name must not be empty")
			}
			if n < 0 {
				return fmt.Errorf("count for %q must be non-negative, got %d", class, n)
			}
		}
		return nil
	case MetadataStage:
		if len(st.VideoNames) == 0 && blank(st.StartDate) && blank(st.EndDate) {
			return fmt.Errorf("provide videoNames, startDate or endDate")
		}
		from, to, err := st.Range()
		if err != nil {
			return err
		}
		if from != nil && to != nil && from.After(*to) {
			return fmt.Errorf("startDate must not be after endDate")
		}
		return nil
	case UnsupportedStage:
		return fmt.Errorf("%w %q", common.ErrUnsupportedStage, st.Name)
	default:
		return common.ErrUnsupportedStage
	}
}

// ValidateAll 按顺序校验，返回第一个错误；空列表返回 ErrNoStages
func (v Validator) ValidateAll(stages []Stage) error {
	if len(stages) == 0 {
		return common.ErrNoStages
	}
	for i, s := range stages {
		if s == nil {
			return common.NewValidationError(i, "", "stage is empty")
		}
		if err := v.Validate(s); err != nil {
			return common.NewValidationError(i, string(s.Type()), err.Error())
		}
	}
	return nil
}

func (v Validator) checkTopK(topK int) error {
	if topK < v.MinTopK {
		return fmt.Errorf("top_k must be at least %d", v.MinTopK)
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
