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


package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/pkg/config"
	pkgerrors "keyframe-search/pkg/errors"
)

const seedJSON = `[
	{"videoName": "L02_V001", "title": "Evening news", "publishDate": "2024-03-02T18:00:00Z",
	 "keywords": ["news"], "frameData": [{"n": 2, "ptsTime": 1.5, "fps": 25, "frameIdx": 37}, {"n": 1, "ptsTime": 0, "fps": 25, "frameIdx": 0}]},
	{"videoName": "L01_V001", "title": "Morning news", "publishDate": "2024-03-01T08:00:00Z",
	 "frameData": [{"n": 1, "ptsTime": 0, "fps": 30, "frameIdx": 0}]},
	{"videoName": "L01_V002", "publishDate": "2024-01-15T08:00:00Z"}
]`

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	n, err := LoadSeed(context.Background(), s, strings.NewReader(seedJSON))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return s
}

func date(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func names(videos []common.VideoMetadata) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.VideoName
	}
	return out
}

func TestMemoryStore_QueryVideos(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	all, err := s.QueryVideos(ctx, common.MetadataFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"L01_V001", "L01_V002", "L02_V001"}, names(all))

	byName, err := s.QueryVideos(ctx, common.MetadataFilter{VideoNames: []string{"L02_V001", "missing"}})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, []int{1, 2}, []int{byName[0].FrameData[0].N, byName[0].FrameData[1].N})

	march, err := s.QueryVideos(ctx, common.MetadataFilter{
		From: date("2024-03-01T00:00:00Z"),
		To:   date("2024-03-01T23:59:59Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"L01_V001"}, names(march))

	none, err := s.QueryVideos(ctx, common.MetadataFilter{From: date("2030-01-01T00:00:00Z")})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryStore_GetVideoAndFrame(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	v, err := s.GetVideo(ctx, "L01_V001")
	require.NoError(t, err)
	assert.Equal(t, "Morning news", v.Title)

	_, err = s.GetVideo(ctx, "nope")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))

	fd, err := s.GetFrame(ctx, "L02_V001", 2)
	require.NoError(t, err)
	assert.Equal(t, 37, fd.FrameIdx)
	assert.InDelta(t, 1.5, fd.PtsTime, 1e-9)

	_, err = s.GetFrame(ctx, "L02_V001", 9)
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestMemoryStore_ListVideos(t *testing.T) {
	names, err := seeded(t).ListVideos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"L01_V001", "L01_V002", "L02_V001"}, names)
}

func TestLoadSeed_Invalid(t *testing.T) {
	_, err := LoadSeed(context.Background(), NewMemoryStore(), strings.NewReader(`{"videoName": 1}`))
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.MetadataConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(context.Background(), config.MetadataConfig{Type: "mongo"}, nil)
	assert.Error(t, err)
}
