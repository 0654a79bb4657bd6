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
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	e := NewValidationError(0, "keyframes", "only one of image_id_query or text_query is allowed")
	if s := e.Error(); !strings.HasPrefix(s, "stage 1 (keyframes): ") {
		t.Errorf("Error() = %q", s)
	}
	if s := NewValidationError(-1, "", "bad body").Error(); s != "bad body" {
		t.Errorf("Error() without index = %q", s)
	}
}

func TestIsValidationError_GetValidationError(t *testing.T) {
	e := NewValidationError(2, "objects", "m")
	wrapped := fmt.Errorf("submit: %w", e)
	if !IsValidationError(wrapped) {
		t.Error("IsValidationError should be true")
	}
	got, ok := GetValidationError(wrapped)
	if !ok || got != e {
		t.Errorf("GetValidationError: ok=%v got=%v", ok, got)
	}
	if !IsValidationError(ErrNoStages) {
		t.Error("ErrNoStages counts as validation failure")
	}
	if _, ok := GetValidationError(errors.New("other")); ok {
		t.Error("GetValidationError(other) should be false")
	}
}

func TestBackendError(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewBackendError(1, "text", cause)
	if e.Unwrap() != cause {
		t.Error("Unwrap() should return cause")
	}
	if !IsBackendError(fmt.Errorf("query: %w", e)) {
		t.Error("IsBackendError should see through wrapping")
	}
	if IsBackendError(cause) {
		t.Error("plain error is not a BackendError")
	}
	if got, ok := GetBackendError(e); !ok || got.Index != 1 || got.Type != "text" {
		t.Errorf("GetBackendError: ok=%v got=%+v", ok, got)
	}
}

func TestBackendError_Timeout(t *testing.T) {
	e := NewBackendError(0, "objects", fmt.Errorf("query store: %w", context.DeadlineExceeded))
	if !errors.Is(e, ErrTimeout) {
		t.Error("deadline exceeded should map to ErrTimeout")
	}
	if !errors.Is(e, context.DeadlineExceeded) {
		t.Error("original cause should be kept")
	}
}
