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


// Package clip CLIP 检索后端客户端：文本 / 图片 / 关键帧 id 检索，返回按相似度排序的关键帧
package clip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"keyframe-search/internal/pipeline/common"
	"keyframe-search/pkg/metrics"
)

const backendName = "clip"

// maxImageBytes 按 URL 下载查询图片的大小上限
const maxImageBytes = 10 << 20

// Config 客户端配置
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RPS           float64 // <=0 不限速
	Burst         int
	MaxConcurrent int // <=0 不限并发
	// ImageBaseURL 关键帧图片服务；非空时 image_id 查询先取回该帧图片再以图搜图
	ImageBaseURL string
}

// Request 一次检索请求
type Request struct {
	Query     string
	QueryType string
	TopK      int
	Image     []byte
	ImageURL  string
}

// Hit 检索命中
type Hit struct {
	Frame common.FrameIdentity
	Score float64
}

// Client CLIP 检索客户端
type Client struct {
	http      *resty.Client
	limiter   *rate.Limiter
	sem       chan struct{}
	imageBase string
	maxImage  int64
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("clip base_url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("ngrok-skip-browser-warning", "nothing")

	c := &Client{http: client, imageBase: strings.TrimRight(cfg.ImageBaseURL, "/"), maxImage: maxImageBytes}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	if cfg.MaxConcurrent > 0 {
		c.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return c, nil
}

// acquire 限速并占用并发槽，返回释放函数
func (c *Client) acquire(ctx context.Context) (func(), error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("clip rate limit wait: %w", err)
		}
	}
	if c.sem == nil {
		return func() {}, nil
	}
	select {
	case c.sem <- struct{}{}:
		return func() { <-c.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Retrieve 调用 POST /retrieval（multipart）。
// 返回顺序即后端给出的相似度顺序。
func (c *Client) Retrieve(ctx context.Context, req Request) ([]Hit, error) {
	if req.QueryType == "" {
		req.QueryType = common.QueryTypeText
	}
	if err := c.prepareImage(ctx, &req); err != nil {
		return nil, err
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r := c.http.R().SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"queryType": req.QueryType,
			"topk":      strconv.Itoa(req.TopK),
		})
	if req.QueryType == common.QueryTypeImage {
		r.SetFileReader("query", "query.jpg", bytes.NewReader(req.Image))
	} else {
		r.SetMultipartFormData(map[string]string{"query": req.Query})
	}

	resp, err := r.Post("/retrieval")
	if err != nil {
		metrics.BackendRequests.WithLabelValues(backendName, "error").Inc()
		return nil, fmt.Errorf("调用 CLIP 检索失败: %w", err)
	}
	metrics.BackendRequests.WithLabelValues(backendName, strconv.Itoa(resp.StatusCode())).Inc()
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusFound {
		return nil, fmt.Errorf("%w: CLIP 返回 %d: %s", common.ErrBackendStatus, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return parseHits(resp.Body())
}

// prepareImage 图片查询补齐图片字节；配置了图片服务时 image_id 转为以图搜图
func (c *Client) prepareImage(ctx context.Context, req *Request) error {
	switch {
	case req.QueryType == common.QueryTypeImageID && c.imageBase != "":
		f, err := common.ParseKeyframeID(req.Query)
		if err != nil {
			return err
		}
		data, err := c.fetchImage(ctx, fmt.Sprintf("%s/%s/%s", c.imageBase, f.VideoName, f.FrameFile()))
		if err != nil {
			return err
		}
		req.QueryType, req.Image = common.QueryTypeImage, data
	case req.QueryType == common.QueryTypeImage && len(req.Image) == 0:
		if req.ImageURL == "" {
			return fmt.Errorf("image query requires image data or url")
		}
		data, err := c.fetchImage(ctx, req.ImageURL)
		if err != nil {
			return err
		}
		req.Image = data
	}
	return nil
}

func (c *Client) fetchImage(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, fmt.Errorf("下载查询图片失败: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: 下载查询图片返回 %d", common.ErrBackendStatus, resp.StatusCode())
	}
	// 多读 1 字节以判断是否超限
	data, err := io.ReadAll(io.LimitReader(body, c.maxImage+1))
	if err != nil {
		return nil, fmt.Errorf("读取查询图片失败: %w", err)
	}
	if int64(len(data)) > c.maxImage {
		return nil, fmt.Errorf("查询图片超过 %d 字节", c.maxImage)
	}
	return data, nil
}

// retrievalResponse 兼容 details 对象列表与 keyframes id 列表两种返回
type retrievalResponse struct {
	Details   []json.RawMessage `json:"details"`
	Keyframes []string          `json:"keyframes"`
	Scores    []float64         `json:"scores"`
}

func parseHits(body []byte) ([]Hit, error) {
	var rr retrievalResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("解析 CLIP 响应失败: %w", err)
	}
	hits := make([]Hit, 0, len(rr.Details)+len(rr.Keyframes))
	for _, raw := range rr.Details {
		var f common.FrameIdentity
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("解析 CLIP 结果失败: %w", err)
		}
		var s struct {
			Score float64 `json:"score"`
		}
		_ = json.Unmarshal(raw, &s)
		hits = append(hits, Hit{Frame: f, Score: s.Score})
	}
	if len(rr.Details) == 0 {
		for i, id := range rr.Keyframes {
			f, err := common.ParseKeyframeID(id)
			if err != nil {
				return nil, err
			}
			h := Hit{Frame: f}
			if i < len(rr.Scores) {
				h.Score = rr.Scores[i]
			}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
