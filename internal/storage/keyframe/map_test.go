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


package keyframe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe-search/internal/pipeline/common"
	pkgerrors "keyframe-search/pkg/errors"
)

const csvBody = "n,pts_time,fps,frame_idx\n1,0.0,25.0,0\n2,3.2,25.0,80\n\n3,7.04,25.0,176.0\n"

func writeMap(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "L01_V001.csv"), []byte(csvBody), 0o644))
	return dir
}

func TestMap_Lookup(t *testing.T) {
	m := NewMap(writeMap(t))

	idx, err := m.FrameIdx(common.NewFrameIdentity("L01_V001", "002.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 80, idx)

	e, err := m.Lookup(common.NewFrameIdentity("L01_V001", "3"))
	require.NoError(t, err)
	assert.Equal(t, 176, e.FrameIdx)
	assert.InDelta(t, 7.04, e.PtsTime, 1e-9)
}

func TestMap_NotFound(t *testing.T) {
	m := NewMap(writeMap(t))

	_, err := m.FrameIdx(common.NewFrameIdentity("L01_V001", "99"))
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))

	_, err = m.FrameIdx(common.NewFrameIdentity("L09_V001", "1"))
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestMap_InvalidInput(t *testing.T) {
	m := NewMap(writeMap(t))

	_, err := m.FrameIdx(common.NewFrameIdentity("L01_V001", "abc"))
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArg))

	_, err = m.FrameIdx(common.NewFrameIdentity("../etc/passwd", "1"))
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArg))
}

func TestParse_ColumnOrderAndBOM(t *testing.T) {
	rows, err := Parse(strings.NewReader("\ufeffframe_idx,n\n40,1\n"))
	require.NoError(t, err)
	assert.Equal(t, Entry{N: 1, FrameIdx: 40}, rows[1])

	_, err = Parse(strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)
}
