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
	"context"
	"errors"
	"testing"

	einoretriever "github.com/cloudwego/eino/components/retriever"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/storage/vector"
	pkgerrors "keyframe-search/pkg/errors"
)

func newSimilarFixture(t *testing.T) *SimilarFrameRetriever {
	t.Helper()
	ctx := context.Background()
	store := vector.NewMemoryStore()
	if err := vector.EnsureIndex(ctx, store, "keyframes", 3, "cosine"); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	err := store.Add(ctx, "keyframes", []*vector.Vector{
		{ID: "L01_V001-10", Values: []float32{1, 0, 0}, Metadata: map[string]string{vector.MetaVideoName: "L01_V001", vector.MetaFrameName: "10"}},
		{ID: "L01_V001-11", Values: []float32{0.95, 0.05, 0}, Metadata: map[string]string{vector.MetaVideoName: "L01_V001", vector.MetaFrameName: "11"}},
		{ID: "L02_V003-4", Values: []float32{0.7, 0.7, 0}},
		{ID: "L03_V009-1", Values: []float32{0, 0, 1}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	ret, err := NewSimilarFrameRetriever(&SimilarFrameRetrieverConfig{VectorStore: store})
	if err != nil {
		t.Fatalf("NewSimilarFrameRetriever: %v", err)
	}
	return ret
}

func TestSimilarFrameRetriever_Retrieve(t *testing.T) {
	ret := newSimilarFixture(t)

	docs, err := ret.Retrieve(context.Background(), "L01_V001-010.jpg", einoretriever.WithTopK(2))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	frames, err := common.FramesFromDocuments(docs)
	if err != nil {
		t.Fatalf("FramesFromDocuments: %v", err)
	}
	want := []string{"L01_V001-11", "L02_V003-4"}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), frames)
	}
	for i, f := range frames {
		if f.KeyframeID() != want[i] {
			t.Errorf("frame %d: expected %s, got %s", i, want[i], f.KeyframeID())
		}
	}
}

func TestSimilarFrameRetriever_UnknownFrame(t *testing.T) {
	ret := newSimilarFixture(t)
	_, err := ret.Retrieve(context.Background(), "L09_V001-1")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSimilarFrameRetriever_BadID(t *testing.T) {
	ret := newSimilarFixture(t)
	if _, err := ret.Retrieve(context.Background(), "nodash"); err == nil {
		t.Error("expected error for malformed keyframe id")
	}
}

func TestNewSimilarFrameRetriever_RequiresStore(t *testing.T) {
	if _, err := NewSimilarFrameRetriever(&SimilarFrameRetrieverConfig{}); err == nil {
		t.Error("expected error without vector store")
	}
}
