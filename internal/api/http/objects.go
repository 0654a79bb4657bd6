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


package http

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/pipeline/query"
	"keyframe-search/internal/storage/objects"
	pkgerrors "keyframe-search/pkg/errors"
)

// frameList 结果帧及其 "VIDEO-FRAME" 形式
type frameList struct {
	Results   []common.FrameIdentity `json:"results"`
	Keyframes []string               `json:"keyframes"`
	Count     int                    `json:"count"`
}

func newFrameList(frames []common.FrameIdentity) frameList {
	if frames == nil {
		frames = []common.FrameIdentity{}
	}
	ids := make([]string, len(frames))
	for i, f := range frames {
		ids[i] = f.KeyframeID()
	}
	return frameList{Results: frames, Keyframes: ids, Count: len(frames)}
}

// ObjectsQuery 按 {类别: 数量} 过滤帧（AND + 数量匹配）
// POST /api/objects/query
func (h *Handler) ObjectsQuery(ctx context.Context, c *app.RequestContext) {
	if h.objects == nil {
		writeError(ctx, c, errUnavailable("object store"))
		return
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(c.Request.Body(), &payload); err != nil {
		badRequest(c, "invalid request: body must be an object of {class: count}")
		return
	}
	stage, err := query.Descriptor{Type: string(query.TypeObjects), Payload: payload}.Stage(0)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if err := h.validator.ValidateAll([]query.Stage{stage}); err != nil {
		writeError(ctx, c, err)
		return
	}
	spec := stage.(query.ObjectsStage).Spec
	classes := make([]string, 0, len(spec))
	for cls := range spec {
		classes = append(classes, cls)
	}
	sort.Strings(classes)

	frames, err := h.objects.FramesWithAllClasses(ctx, classes)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, newFrameList(query.FilterByObjectCounts(frames, spec)))
}

// ObjectClasses 各类别检测数
// GET /api/objects/classes
func (h *Handler) ObjectClasses(ctx context.Context, c *app.RequestContext) {
	if h.objects == nil {
		writeError(ctx, c, errUnavailable("object store"))
		return
	}
	counts, err := h.objects.ClassCounts(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"classes": counts})
}

// ObjectFrame 单帧检测结果
// GET /api/objects/frame?videoName=&frameName=
func (h *Handler) ObjectFrame(ctx context.Context, c *app.RequestContext) {
	if h.objects == nil {
		writeError(ctx, c, errUnavailable("object store"))
		return
	}
	frame, ok := frameFromQuery(c)
	if !ok {
		badRequest(c, "videoName and frameName are required")
		return
	}
	dets, err := h.objects.FrameDetections(ctx, frame)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if dets == nil {
		dets = []common.Detection{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"videoName": frame.VideoName,
		"frameName": frame.FrameFile(),
		"objects":   dets,
	})
}

// ObjectsFilterRequest 按类别（任一命中）过滤给定帧
type ObjectsFilterRequest struct {
	Frames    []common.FrameIdentity `json:"frames"`
	Keyframes []string               `json:"keyframes"`
	Classes   []string               `json:"classes"`
}

// ObjectsFilter 保留含任一给定类别的帧，保持输入顺序
// POST /api/objects/filter
func (h *Handler) ObjectsFilter(ctx context.Context, c *app.RequestContext) {
	if h.objects == nil {
		writeError(ctx, c, errUnavailable("object store"))
		return
	}
	var req ObjectsFilterRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	frames := req.Frames
	for _, id := range req.Keyframes {
		f, err := common.ParseKeyframeID(id)
		if err != nil {
			writeError(ctx, c, pkgerrors.InvalidArgf("%v", err))
			return
		}
		frames = append(frames, f)
	}
	var classes []string
	for _, cls := range req.Classes {
		if cls = strings.TrimSpace(cls); cls != "" {
			classes = append(classes, cls)
		}
	}
	if len(classes) == 0 {
		badRequest(c, "classes must not be empty")
		return
	}
	out, err := objects.FilterAnyClass(ctx, h.objects, frames, classes, h.filterConcurrency)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, newFrameList(out))
}

// frameFromQuery 读取 videoName / frameName 查询参数
func frameFromQuery(c *app.RequestContext) (common.FrameIdentity, bool) {
	video := strings.TrimSpace(c.Query("videoName"))
	frame := strings.TrimSpace(c.Query("frameName"))
	if video == "" || frame == "" {
		return common.FrameIdentity{}, false
	}
	return common.NewFrameIdentity(video, frame), true
}
