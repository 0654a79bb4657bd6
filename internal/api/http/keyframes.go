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
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"keyframe-search/internal/pipeline/common"
)

// KeyframeIndex 关键帧在原视频中的帧号
// GET /api/keyframes/index?videoName=&frameName=
func (h *Handler) KeyframeIndex(ctx context.Context, c *app.RequestContext) {
	if h.keyframes == nil {
		writeError(ctx, c, errUnavailable("keyframe map"))
		return
	}
	frame, ok := frameFromQuery(c)
	if !ok {
		badRequest(c, "videoName and frameName are required")
		return
	}
	e, err := h.keyframes.Lookup(frame)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"videoName": frame.VideoName,
		"frameName": frame.FrameName,
		"frameIdx":  e.FrameIdx,
		"ptsTime":   e.PtsTime,
		"fps":       e.FPS,
	})
}

// SubmitRequest DRES 提交；keyframe 与 videoName/frameName 二选一
type SubmitRequest struct {
	VideoName string `json:"videoName"`
	FrameName string `json:"frameName"`
	Keyframe  string `json:"keyframe"`
}

// SubmitDRES 把关键帧换算为帧号后提交到 DRES
// POST /api/dres/submit
func (h *Handler) SubmitDRES(ctx context.Context, c *app.RequestContext) {
	if h.dres == nil {
		writeError(ctx, c, errUnavailable("dres"))
		return
	}
	if h.keyframes == nil {
		writeError(ctx, c, errUnavailable("keyframe map"))
		return
	}
	var req SubmitRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	var frame common.FrameIdentity
	switch {
	case req.Keyframe != "":
		f, err := common.ParseKeyframeID(req.Keyframe)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		frame = f
	case strings.TrimSpace(req.VideoName) != "" && strings.TrimSpace(req.FrameName) != "":
		frame = common.NewFrameIdentity(req.VideoName, req.FrameName)
	default:
		badRequest(c, "videoName and frameName are required")
		return
	}

	idx, err := h.keyframes.FrameIdx(frame)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	res, err := h.dres.Submit(ctx, frame.VideoName, idx)
	if err != nil {
		writeError(ctx, c, upstream("dres", err))
		return
	}
	h.logger.Info("已提交 DRES", "video", frame.VideoName, "frame_idx", idx, "submission", res.Submission)
	c.JSON(consts.StatusOK, map[string]interface{}{
		"videoName": frame.VideoName,
		"frameIdx":  idx,
		"result":    res,
	})
}

// Translate 文本翻译为英文
// POST /api/translate
func (h *Handler) Translate(ctx context.Context, c *app.RequestContext) {
	if h.translator == nil {
		writeError(ctx, c, errUnavailable("translator"))
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil || strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text is required")
		return
	}
	out, err := h.translator.Translate(ctx, req.Text)
	if err != nil {
		writeError(ctx, c, upstream("translate", err))
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"text": out})
}
