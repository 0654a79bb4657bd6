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
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"keyframe-search/internal/pipeline/common"
)

// kf 由 "VIDEO-FRAME" 构造关键帧
func kf(t testing.TB, id string) common.FrameIdentity {
	t.Helper()
	f, err := common.ParseKeyframeID(id)
	if err != nil {
		t.Fatalf("ParseKeyframeID(%q): %v", id, err)
	}
	return f
}

func kfs(t testing.TB, ids ...string) []common.FrameIdentity {
	t.Helper()
	out := make([]common.FrameIdentity, 0, len(ids))
	for _, id := range ids {
		out = append(out, kf(t, id))
	}
	return out
}

func ids(frames []common.FrameIdentity) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.KeyframeID()
	}
	return out
}

// fakeExecutor 记录调用并按层级统计并发峰值
type fakeExecutor struct {
	fn func(ctx context.Context, s Stage) ([]common.FrameIdentity, error)

	mu    sync.Mutex
	calls []Stage

	inflight  [2]atomic.Int32
	highWater [2]atomic.Int32
	gate      chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, s Stage) ([]common.FrameIdentity, error) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()

	t := tierOf(s)
	n := f.inflight[t].Add(1)
	defer f.inflight[t].Add(-1)
	for {
		hw := f.highWater[t].Load()
		if n <= hw || f.highWater[t].CompareAndSwap(hw, n) {
			break
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, s)
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// byQuery 文本类阶段按查询词返回结果，objects 阶段按类别名（逗号连接）返回
func byQuery(t testing.TB, results map[string][]string) func(context.Context, Stage) ([]common.FrameIdentity, error) {
	return func(_ context.Context, s Stage) ([]common.FrameIdentity, error) {
		var key string
		switch st := s.(type) {
		case TextStage:
			key = st.Query
		case ScenesStage:
			key = st.Query
		case ASRStage:
			key = st.Query
		case ObjectsStage:
			classes := make([]string, 0, len(st.Spec))
			for c := range st.Spec {
				classes = append(classes, c)
			}
			key = strings.Join(classes, ",")
		}
		return kfs(t, results[key]...), nil
	}
}
