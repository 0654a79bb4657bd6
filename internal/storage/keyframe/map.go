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


// Package keyframe 关键帧映射：map-keyframes/<video>.csv 记录关键帧序号 n 到原视频帧号 frame_idx
package keyframe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"keyframe-search/internal/pipeline/common"
	pkgerrors "keyframe-search/pkg/errors"
)

// Entry CSV 中的一行
type Entry struct {
	N        int     `json:"n"`
	PtsTime  float64 `json:"ptsTime"`
	FPS      float64 `json:"fps"`
	FrameIdx int     `json:"frameIdx"`
}

// Map 按视频懒加载并缓存 CSV
type Map struct {
	dir string

	mu     sync.RWMutex
	videos map[string]map[int]Entry
}

// NewMap 创建以 dir 为根目录的映射
func NewMap(dir string) *Map {
	return &Map{dir: dir, videos: make(map[string]map[int]Entry)}
}

// Lookup 查找关键帧对应的条目；CSV 或行不存在时返回 ErrNotFound
func (m *Map) Lookup(frame common.FrameIdentity) (Entry, error) {
	n, ok := frame.Ordinal()
	if !ok {
		return Entry{}, pkgerrors.InvalidArgf("frame name %q is not numeric", frame.FrameName)
	}
	rows, err := m.load(frame.VideoName)
	if err != nil {
		return Entry{}, err
	}
	e, ok := rows[n]
	if !ok {
		return Entry{}, pkgerrors.NotFoundf("frame %d of video %s", n, frame.VideoName)
	}
	return e, nil
}

// FrameIdx Lookup 的简写
func (m *Map) FrameIdx(frame common.FrameIdentity) (int, error) {
	e, err := m.Lookup(frame)
	if err != nil {
		return 0, err
	}
	return e.FrameIdx, nil
}

func (m *Map) load(video string) (map[int]Entry, error) {
	if video == "" || strings.ContainsAny(video, `/\`) || strings.Contains(video, "..") {
		return nil, pkgerrors.InvalidArgf("invalid video name %q", video)
	}
	m.mu.RLock()
	rows, ok := m.videos[video]
	m.mu.RUnlock()
	if ok {
		return rows, nil
	}

	f, err := os.Open(filepath.Join(m.dir, video+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.NotFoundf("keyframe map for video %s", video)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err = Parse(f)
	if err != nil {
		return nil, fmt.Errorf("解析 %s.csv 失败: %w", video, err)
	}

	m.mu.Lock()
	m.videos[video] = rows
	m.mu.Unlock()
	return rows, nil
}

// Parse 读取带表头的 CSV（n, pts_time, fps, frame_idx），列顺序不限；空行跳过
func Parse(r io.Reader) (map[int]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	nCol, ok1 := col["n"]
	idxCol, ok2 := col["frame_idx"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("表头缺少 n 或 frame_idx 列")
	}

	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	out := make(map[int]Entry)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) <= nCol || len(rec) <= idxCol {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rec[nCol]))
		if err != nil {
			continue
		}
		idx, err := strconv.ParseFloat(strings.TrimSpace(rec[idxCol]), 64)
		if err != nil {
			continue
		}
		e := Entry{N: n, FrameIdx: int(idx)}
		e.PtsTime, _ = strconv.ParseFloat(get(rec, "pts_time"), 64)
		e.FPS, _ = strconv.ParseFloat(get(rec, "fps"), 64)
		if _, dup := out[n]; !dup {
			out[n] = e
		}
	}
	return out, nil
}
