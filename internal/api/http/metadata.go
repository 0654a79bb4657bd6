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
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/pipeline/query"
	pkgerrors "keyframe-search/pkg/errors"
)

// MetadataQueryRequest 元数据查询
type MetadataQueryRequest struct {
	VideoNames    []string `json:"videoNames"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	IncludeFrames bool     `json:"includeFrames"`
}

// MetadataQuery 按视频名与发布日期过滤
// POST /api/metadata/query
func (h *Handler) MetadataQuery(ctx context.Context, c *app.RequestContext) {
	if h.metadata == nil {
		writeError(ctx, c, errUnavailable("metadata store"))
		return
	}
	var req MetadataQueryRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	stage := query.MetadataStage{VideoNames: req.VideoNames, StartDate: req.StartDate, EndDate: req.EndDate}
	if err := h.validator.ValidateAll([]query.Stage{stage}); err != nil {
		writeError(ctx, c, err)
		return
	}
	from, to, err := stage.Range()
	if err != nil {
		writeError(ctx, c, pkgerrors.InvalidArgf("%v", err))
		return
	}
	videos, err := h.metadata.QueryVideos(ctx, common.MetadataFilter{VideoNames: req.VideoNames, From: from, To: to})
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	frames := query.ExpandVideoFrames(videos)
	if !req.IncludeFrames {
		for i := range videos {
			videos[i].FrameData = nil
		}
	}
	if videos == nil {
		videos = []common.VideoMetadata{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"videos":     videos,
		"count":      len(videos),
		"frameCount": len(frames),
	})
}

// ListVideos 全部视频名
// GET /api/metadata/videos
func (h *Handler) ListVideos(ctx context.Context, c *app.RequestContext) {
	if h.metadata == nil {
		writeError(ctx, c, errUnavailable("metadata store"))
		return
	}
	names, err := h.metadata.ListVideos(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"videos": names})
}

// GetVideo 单个视频元数据
// GET /api/metadata/videos/:videoName
func (h *Handler) GetVideo(ctx context.Context, c *app.RequestContext) {
	if h.metadata == nil {
		writeError(ctx, c, errUnavailable("metadata store"))
		return
	}
	v, err := h.metadata.GetVideo(ctx, c.Param("videoName"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, v)
}

// GetFrame 视频内单帧的时间信息；frameName 形如 "012" 或 "012.jpg"
// GET /api/metadata/videos/:videoName/frames/:frameName
func (h *Handler) GetFrame(ctx context.Context, c *app.RequestContext) {
	if h.metadata == nil {
		writeError(ctx, c, errUnavailable("metadata store"))
		return
	}
	name := common.NormalizeFrameName(c.Param("frameName"))
	n, err := strconv.Atoi(strings.TrimSpace(name))
	if err != nil {
		badRequest(c, "frameName must be numeric")
		return
	}
	fd, err := h.metadata.GetFrame(ctx, c.Param("videoName"), n)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, fd)
}
