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

	"golang.org/x/sync/errgroup"

	"keyframe-search/internal/pipeline/common"
)

// DefaultFilterConcurrency FilterAnyClass 的默认并发查询数
const DefaultFilterConcurrency = 16

// FilterAnyClass 保留至少包含一个给定类别的帧（OR 语义），保持输入顺序。
// classes 为空时原样返回；逐帧查询并发数不超过 concurrency。
func FilterAnyClass(ctx context.Context, s Store, frames []common.FrameIdentity, classes []string, concurrency int) ([]common.FrameIdentity, error) {
	if len(classes) == 0 {
		return frames, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultFilterConcurrency
	}
	want := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		want[c] = struct{}{}
	}

	keep := make([]bool, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range frames {
		g.Go(func() error {
			dets, err := s.FrameDetections(gctx, f)
			if err != nil {
				return err
			}
			for _, d := range dets {
				if _, ok := want[d.ClassName]; ok {
					keep[i] = true
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]common.FrameIdentity, 0, len(frames))
	for i, f := range frames {
		if keep[i] {
			out = append(out, f)
		}
	}
	return out, nil
}
