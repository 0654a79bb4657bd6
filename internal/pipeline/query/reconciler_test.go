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
)

func TestFold_SeedsFromFirstOutput(t *testing.T) {
	rs, exhausted := Fold(nil, kfs(t, "V-3", "V-1", "V-3", "V-2"))
	assert.False(t, exhausted)
	assert.Equal(t, []string{"V-3", "V-1", "V-2"}, ids(rs.Frames()))
}

func TestFold_IntersectKeepsBaseOrder(t *testing.T) {
	base, _ := Fold(nil, kfs(t, "V-A", "V-B", "V-C"))
	next, exhausted := Fold(base, kfs(t, "V-C", "V-A"))
	assert.False(t, exhausted)
	assert.Equal(t, []string{"V-A", "V-C"}, ids(next.Frames()))
	// base 不被修改
	assert.Equal(t, 3, base.Len())
}

func TestFold_NormalizedFrameNames(t *testing.T) {
	base, _ := Fold(nil, kfs(t, "L01_V001-012.jpg", "L01_V001-7"))
	next, _ := Fold(base, kfs(t, "L01_V001-12", "L01_V001-007.JPG"))
	assert.Equal(t, []string{"L01_V001-12", "L01_V001-7"}, ids(next.Frames()))
}

func TestFold_Exhausted(t *testing.T) {
	base, _ := Fold(nil, kfs(t, "V-1", "V-2"))
	next, exhausted := Fold(base, kfs(t, "V-3"))
	assert.True(t, exhausted)
	assert.Equal(t, 0, next.Len())

	_, exhausted = Fold(nil, nil)
	assert.True(t, exhausted, "empty seed")
}

func TestResultSet_Contains(t *testing.T) {
	rs := NewResultSet(kfs(t, "V-1"))
	assert.True(t, rs.Contains(kf(t, "V-001.jpg")))
	assert.False(t, rs.Contains(kf(t, "V-2")))

	var nilSet *ResultSet
	assert.False(t, nilSet.Contains(kf(t, "V-1")))
	assert.Equal(t, 0, nilSet.Len())
	assert.NotNil(t, nilSet.Frames())
}
