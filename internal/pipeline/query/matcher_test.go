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
	"testing"

	"github.com/stretchr/testify/assert"

	"keyframe-search/internal/pipeline/common"
)

func TestMatchesObjectCounts(t *testing.T) {
	tests := []struct {
		name     string
		detected map[string]int
		spec     ObjectCountSpec
		want     bool
	}{
		{"exact", map[string]int{"car": 2, "person": 1}, ObjectCountSpec{"car": 2}, true},
		{"count differs", map[string]int{"car": 3}, ObjectCountSpec{"car": 2}, false},
		{"presence only", map[string]int{"person": 5}, ObjectCountSpec{"person": 0}, true},
		{"absent with zero", map[string]int{"car": 1}, ObjectCountSpec{"person": 0}, false},
		{"one class missing", map[string]int{"car": 2}, ObjectCountSpec{"car": 2, "dog": 1}, false},
		{"mixed", map[string]int{"car": 2, "dog": 4}, ObjectCountSpec{"car": 2, "dog": 0}, true},
		{"empty frame", map[string]int{}, ObjectCountSpec{"car": 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesObjectCounts(tt.detected, tt.spec))
		})
	}
}

func TestFilterByObjectCounts_KeepsOrder(t *testing.T) {
	det := func(classes ...string) []common.Detection {
		out := make([]common.Detection, len(classes))
		for i, c := range classes {
			out[i] = common.Detection{ClassName: c, Confidence: 0.9}
		}
		return out
	}
	frames := []common.FrameDetections{
		{Frame: kf(t, "L01_V001-9"), Objects: det("car", "car", "person")},
		{Frame: kf(t, "L01_V001-2"), Objects: det("car")},
		{Frame: kf(t, "L01_V002-4"), Objects: det("person", "car", "car")},
		{Frame: kf(t, "L01_V002-5"), Objects: det("car", "car")},
	}
	got := FilterByObjectCounts(frames, ObjectCountSpec{"car": 2, "person": 0})
	assert.Equal(t, []string{"L01_V001-9", "L01_V002-4"}, ids(got))

	assert.Empty(t, FilterByObjectCounts(nil, ObjectCountSpec{"car": 1}))
}

func TestCountDetections(t *testing.T) {
	counts := CountDetections([]common.Detection{{ClassName: "car"}, {ClassName: "car"}, {ClassName: "bus"}})
	assert.Equal(t, map[string]int{"car": 2, "bus": 1}, counts)
}
