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
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/internal/pipeline/query"
	pkgerrors "keyframe-search/pkg/errors"
)

// SearchRequest 多阶段查询请求；请求体也可以直接是阶段数组
type SearchRequest struct {
	Query     []query.Descriptor `json:"query"`
	Group     bool               `json:"group"`
	Subset    string             `json:"subset"`
	Limit     int                `json:"limit"`
	Translate bool               `json:"translate"`
}

// SearchResponse 多阶段查询响应
type SearchResponse struct {
	*query.Result
	Keyframes []string           `json:"keyframes"`
	Groups    []query.VideoGroup `json:"groups,omitempty"`
}

func decodeSearchRequest(body []byte) (*SearchRequest, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, common.ErrNoStages
	}
	req := &SearchRequest{}
	if body[0] == '[' {
		if err := json.Unmarshal(body, &req.Query); err != nil {
			return nil, pkgerrors.InvalidArgf("invalid stage list: %v", err)
		}
		return req, nil
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, pkgerrors.InvalidArgf("invalid search request: %v", err)
	}
	return req, nil
}

// runSearch 解码、可选翻译、执行并按子集与条数裁剪
func (h *Handler) runSearch(ctx context.Context, req *SearchRequest) (*query.Result, error) {
	if h.engine == nil {
		return nil, errUnavailable("query engine")
	}
	if len(req.Query) == 0 {
		return nil, common.ErrNoStages
	}
	var prefixes []string
	if req.Subset != "" {
		p, err := h.subsets.Prefixes(req.Subset)
		if err != nil {
			return nil, err
		}
		prefixes = p
	}
	stages, err := query.DecodeStages(req.Query)
	if err != nil {
		return nil, err
	}
	if req.Translate {
		if err := h.translateStages(ctx, stages); err != nil {
			return nil, err
		}
	}
	res, err := h.engine.Run(ctx, stages)
	if err != nil {
		return nil, err
	}
	res.Frames = query.FilterByPrefixes(res.Frames, prefixes)
	if req.Limit > 0 && len(res.Frames) > req.Limit {
		res.Frames = res.Frames[:req.Limit]
	}
	return res, nil
}

// translateStages 把 text、keyframes 文本与 scenes 查询翻译为英文；先校验，避免为无效查询调用翻译
func (h *Handler) translateStages(ctx context.Context, stages []query.Stage) error {
	if h.translator == nil {
		return pkgerrors.InvalidArgf("translation is not enabled")
	}
	if err := h.engine.Validator().ValidateAll(stages); err != nil {
		return err
	}
	tr := func(s string) (string, error) {
		if strings.TrimSpace(s) == "" {
			return s, nil
		}
		out, err := h.translator.Translate(ctx, s)
		if err != nil {
			return "", upstream("translate", err)
		}
		return out, nil
	}
	for i, s := range stages {
		var err error
		switch st := s.(type) {
		case query.TextStage:
			st.Query, err = tr(st.Query)
			stages[i] = st
		case query.KeyframesStage:
			st.TextQuery, err = tr(st.TextQuery)
			stages[i] = st
		case query.ScenesStage:
			st.Query, err = tr(st.Query)
			stages[i] = st
		case query.ASRStage:
			// ASR 转写为视频原语言，保持原文检索
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Search 多阶段查询
// POST /api/search
func (h *Handler) Search(ctx context.Context, c *app.RequestContext) {
	req, err := decodeSearchRequest(c.Request.Body())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	res, err := h.runSearch(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	resp := SearchResponse{Result: res, Keyframes: res.KeyframeIDs()}
	if req.Group {
		resp.Groups = query.GroupByVideo(res.Frames)
	}
	c.JSON(consts.StatusOK, resp)
}

// Export 导出前 N 个结果为 CSV（video,frame_idx）
// POST /api/search/export
func (h *Handler) Export(ctx context.Context, c *app.RequestContext) {
	if h.keyframes == nil {
		writeError(ctx, c, errUnavailable("keyframe map"))
		return
	}
	req, err := decodeSearchRequest(c.Request.Body())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if req.Limit <= 0 || req.Limit > h.exportLimit {
		req.Limit = h.exportLimit
	}
	res, err := h.runSearch(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, f := range res.Frames {
		idx, err := h.keyframes.FrameIdx(f)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNotFound) || errors.Is(err, pkgerrors.ErrInvalidArg) {
				hlog.CtxWarnf(ctx, "export: no frame_idx for %s", f.KeyframeID())
				continue
			}
			writeError(ctx, c, err)
			return
		}
		_ = w.Write([]string{f.VideoName, strconv.Itoa(idx)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+res.QueryID+`.csv"`)
	c.Data(consts.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
