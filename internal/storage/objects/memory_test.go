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


package objects

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/storage/cache"
	"keyframe-search/pkg/config"
)

const seedJSON = `[
	{"frame": {"videoName": "L01_V001", "frameName": "001.jpg"},
	 "objects": [{"className": "car", "confidence": 0.9, "xywhn": [0.1, 0.2, 0.3, 0.4]},
	             {"className": "car", "confidence": 0.8, "xywhn": [0.5, 0.5, 0.1, 0.1]},
	             {"className": "person", "confidence": 0.7, "xywhn": [0, 0, 0, 0]}]},
	{"frame": {"videoName": "L01_V001", "frameName": 2},
	 "objects": [{"className": "person", "confidence": 0.6, "xywhn": [0, 0, 0, 0]}]},
	{"frame": {"videoName": "L01_V002", "frameName": "010"},
	 "objects": [{"className": "car", "confidence": 0.9, "xywhn": [0, 0, 0, 0]},
	             {"className": "person", "confidence": 0.9, "xywhn": [0, 0, 0, 0]},
	             {"className": "dog", "confidence": 0.9, "xywhn": [0, 0, 0, 0]}]}
]`

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	n, err := LoadSeed(context.Background(), s, strings.NewReader(seedJSON))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return s
}

func frame(video, name string) common.FrameIdentity {
	return common.NewFrameIdentity(video, name)
}

func TestMemoryStore_FramesWithAllClasses(t *testing.T) {
	s := seededStore(t)
	got, err := s.FramesWithAllClasses(context.Background(), []string{"car", "person"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, frame("L01_V001", "1"), got[0].Frame)
	assert.Len(t, got[0].Objects, 3)
	assert.Equal(t, frame("L01_V002", "10"), got[1].Frame)

	got, err = s.FramesWithAllClasses(context.Background(), []string{"horse"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_FrameDetections(t *testing.T) {
	s := seededStore(t)
	dets, err := s.FrameDetections(context.Background(), frame("L01_V001", "001.jpg"))
	require.NoError(t, err)
	require.Len(t, dets, 3)
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 0.4}, dets[0].XYWHN)

	dets, err = s.FrameDetections(context.Background(), frame("L09_V001", "1"))
	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
}

func TestMemoryStore_ClassCounts(t *testing.T) {
	s := seededStore(t)
	counts, err := s.ClassCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.ClassCount{
		{ClassName: "car", Count: 3},
		{ClassName: "dog", Count: 1},
		{ClassName: "person", Count: 3},
	}, counts)
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, common.FrameDetections{Frame: frame("L01_V001", "2"), Objects: []common.Detection{{ClassName: "bus"}}}))
	dets, _ := s.FrameDetections(ctx, frame("L01_V001", "2"))
	assert.Equal(t, []common.Detection{{ClassName: "bus"}}, dets)

	all, _ := s.FramesWithAllClasses(ctx, nil)
	assert.Len(t, all, 3, "overwrite keeps a single entry per frame")
}

func TestFilterAnyClass(t *testing.T) {
	s := seededStore(t)
	frames := []common.FrameIdentity{frame("L01_V002", "10"), frame("L01_V001", "2"), frame("L01_V001", "1"), frame("L05_V001", "1")}

	got, err := FilterAnyClass(context.Background(), s, frames, []string{"dog", "car"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []common.FrameIdentity{frame("L01_V002", "10"), frame("L01_V001", "1")}, got)

	got, err = FilterAnyClass(context.Background(), s, frames, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}

type countingStore struct {
	Store
	frameCalls atomic.Int32
	inflight   atomic.Int32
	highWater  atomic.Int32
	fail       error
}

func (c *countingStore) FrameDetections(ctx context.Context, f common.FrameIdentity) ([]common.Detection, error) {
	c.frameCalls.Add(1)
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		hw := c.highWater.Load()
		if n <= hw || c.highWater.CompareAndSwap(hw, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.FrameDetections(ctx, f)
}

func TestFilterAnyClass_BoundedConcurrency(t *testing.T) {
	cs := &countingStore{Store: seededStore(t)}
	frames := make([]common.FrameIdentity, 40)
	for i := range frames {
		frames[i] = common.FrameFromOrdinal("L01_V001", i)
	}
	_, err := FilterAnyClass(context.Background(), cs, frames, []string{"car"}, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(40), cs.frameCalls.Load())
	assert.LessOrEqual(t, cs.highWater.Load(), int32(4))
}

func TestFilterAnyClass_Error(t *testing.T) {
	boom := errors.New("db down")
	cs := &countingStore{Store: seededStore(t), fail: boom}
	_, err := FilterAnyClass(context.Background(), cs, []common.FrameIdentity{frame("V", "1")}, []string{"car"}, 0)
	assert.True(t, errors.Is(err, boom))
}

func TestCachedStore_HitsCache(t *testing.T) {
	cs := &countingStore{Store: seededStore(t)}
	c := cache.NewMemoryStore()
	s := NewCachedStore(cs, c, time.Minute, nil)
	ctx := context.Background()
	f := frame("L01_V001", "1")

	first, err := s.FrameDetections(ctx, f)
	require.NoError(t, err)
	second, err := s.FrameDetections(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), cs.frameCalls.Load())

	// 写入使该帧缓存失效
	require.NoError(t, s.Put(ctx, common.FrameDetections{Frame: f, Objects: []common.Detection{{ClassName: "bus"}}}))
	third, err := s.FrameDetections(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "bus", third[0].ClassName)
	assert.Equal(t, int32(2), cs.frameCalls.Load())
}

func TestCachedStore_ClassCountsAndAllClasses(t *testing.T) {
	s := NewCachedStore(seededStore(t), cache.NewMemoryStore(), time.Minute, nil)
	ctx := context.Background()
	counts, err := s.ClassCounts(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, 3)

	a, err := s.FramesWithAllClasses(ctx, []string{"person", "car"})
	require.NoError(t, err)
	b, err := s.FramesWithAllClasses(ctx, []string{"car", "person"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, b, 2)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.ObjectsConfig{Type: "memory", CacheTTL: "1m"}, cache.NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	s, err = NewStore(context.Background(), config.ObjectsConfig{}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(context.Background(), config.ObjectsConfig{Type: "sqlite"}, nil, nil)
	assert.Error(t, err)

	_, err = NewStore(context.Background(), config.ObjectsConfig{Seed: "/nonexistent/seed.json"}, nil, nil)
	assert.Error(t, err)
}
