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


package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe-search/pkg/config"
)

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, EnsureIndex(ctx, s, "kf", 2, ""))
	require.NoError(t, s.Add(ctx, "kf", []*Vector{
		{ID: "L01_V001-1", Values: []float32{1, 0}, Metadata: map[string]string{MetaVideoName: "L01_V001", MetaFrameName: "1"}},
		{ID: "L01_V001-2", Values: []float32{0.9, 0.1}, Metadata: map[string]string{MetaVideoName: "L01_V001", MetaFrameName: "2"}},
		{ID: "L01_V002-7", Values: []float32{0, 1}, Metadata: map[string]string{MetaVideoName: "L01_V002", MetaFrameName: "7"}},
	}))
	return s
}

func TestMemoryStore_SearchOrdersByScore(t *testing.T) {
	s := seeded(t)
	results, err := s.Search(context.Background(), "kf", []float32{1, 0}, &SearchOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "L01_V001-1", results[0].ID)
	assert.Equal(t, "L01_V001-2", results[1].ID)
	assert.Equal(t, "L01_V002-7", results[2].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryStore_SearchTopKAndExclude(t *testing.T) {
	s := seeded(t)
	results, err := s.Search(context.Background(), "kf", []float32{1, 0}, &SearchOptions{TopK: 1, ExcludeID: "L01_V001-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "L01_V001-2", results[0].ID)
}

func TestMemoryStore_SearchThreshold(t *testing.T) {
	s := seeded(t)
	results, err := s.Search(context.Background(), "kf", []float32{1, 0}, &SearchOptions{TopK: 10, Threshold: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryStore_Euclidean(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, &Index{Name: "e", Dimension: 2, Distance: "euclidean"}))
	require.NoError(t, s.Add(ctx, "e", []*Vector{
		{ID: "near", Values: []float32{1, 1}},
		{ID: "far", Values: []float32{5, 5}},
	}))
	results, err := s.Search(ctx, "e", []float32{0, 0}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
}

func TestMemoryStore_AddOverwrites(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "kf", []*Vector{{ID: "L01_V002-7", Values: []float32{1, 0}}}))
	v, err := s.Get(ctx, "kf", "L01_V002-7")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v.Values)
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	err := s.Create(ctx, &Index{Name: "kf", Dimension: 2})
	assert.Error(t, err, "duplicate index")

	err = s.Add(ctx, "missing", []*Vector{{ID: "x", Values: []float32{1, 0}}})
	assert.True(t, errors.Is(err, ErrIndexNotFound))

	err = s.Add(ctx, "kf", []*Vector{{ID: "x", Values: []float32{1, 0, 0}}})
	assert.Error(t, err, "dimension mismatch")

	_, err = s.Search(ctx, "kf", []float32{1}, nil)
	assert.Error(t, err)

	_, err = s.Get(ctx, "kf", "nope")
	assert.True(t, errors.Is(err, ErrVectorNotFound))
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, EnsureIndex(ctx, s, "kf", 4, "cosine"))
	require.NoError(t, EnsureIndex(ctx, s, "kf", 4, "cosine"))
	names, err := s.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kf"}, names)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.VectorConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(context.Background(), config.VectorConfig{Type: "faiss"})
	assert.Error(t, err)
}
