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
	"context"
	"errors"
	"fmt"
)

// 查询编排相关错误
var (
	ErrNoStages         = errors.New("no query stages submitted: at least one stage is required")
	ErrUnsupportedStage = errors.New("unsupported query type")
	ErrTimeout          = errors.New("stage timed out")
	ErrBackendStatus    = errors.New("backend returned non-success status")
	ErrBackendNotWired  = errors.New("backend not configured")
)

// ValidationError 阶段校验错误；出现时整个查询不执行任何阶段
type ValidationError struct {
	Index   int    // 阶段序号，-1 表示与具体阶段无关
	Type    string // 阶段类型
	Message string
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("stage %d (%s): %s", e.Index+1, e.Type, e.Message)
}

// NewValidationError 创建新的验证错误
func NewValidationError(index int, stageType string, message string) *ValidationError {
	return &ValidationError{Index: index, Type: stageType, Message: message}
}

// IsValidationError 检查是否为验证错误（含 ErrNoStages）
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr) || errors.Is(err, ErrNoStages)
}

// GetValidationError 获取验证错误
func GetValidationError(err error) (*ValidationError, bool) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}

// BackendError 已派发阶段的后端调用失败（非成功状态、超时、网络错误）
type BackendError struct {
	Index int
	Type  string
	Err   error
}

// Error 实现 error 接口
func (e *BackendError) Error() string {
	return fmt.Sprintf("stage %d (%s) backend failure: %v", e.Index+1, e.Type, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError 创建后端错误；context 超时统一归为 ErrTimeout
func NewBackendError(index int, stageType string, err error) *BackendError {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &BackendError{Index: index, Type: stageType, Err: err}
}

// IsBackendError 检查是否为后端错误
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// GetBackendError 获取后端错误
func GetBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
