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


// Package dres DRES 评测服务客户端：登录获取 sessionID 并提交关键帧答案
package dres

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"keyframe-search/pkg/metrics"
)

const backendName = "dres"

// Config 客户端配置
type Config struct {
	BaseURL      string
	Username     string
	Password     string
	EvaluationID string
	Timeout      time.Duration
}

// SubmitResult DRES 对一次提交的判定
type SubmitResult struct {
	Status      bool   `json:"status"`
	Submission  string `json:"submission"`
	Description string `json:"description"`
}

type loginResponse struct {
	SessionID    string `json:"sessionID"`
	SessionIDAlt string `json:"sessionId"` // 部分版本返回 sessionId
}

// Client DRES 客户端；sessionID 缓存到收到 401 为止
type Client struct {
	http    *resty.Client
	cfg     Config
	mu      sync.Mutex
	session string
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("dres base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: client, cfg: cfg}, nil
}

// Login 登录并缓存 sessionID
func (c *Client) Login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) (string, error) {
	var out loginResponse
	resp, err := c.http.R().SetContext(ctx).
		SetHeader("X-Request-ID", uuid.New().String()).
		SetBody(map[string]string{"username": c.cfg.Username, "password": c.cfg.Password}).
		SetResult(&out).
		Post("/login")
	if err != nil {
		metrics.BackendRequests.WithLabelValues(backendName, "error").Inc()
		return "", fmt.Errorf("DRES 登录失败: %w", err)
	}
	metrics.BackendRequests.WithLabelValues(backendName, strconv.Itoa(resp.StatusCode())).Inc()
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("DRES 登录返回 %d: %s", resp.StatusCode(), resp.String())
	}
	session := out.SessionID
	if session == "" {
		session = out.SessionIDAlt
	}
	if session == "" {
		return "", fmt.Errorf("DRES 登录响应缺少 sessionID")
	}
	c.session = session
	return session, nil
}

func (c *Client) currentSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return c.session, nil
	}
	return c.loginLocked(ctx)
}

func (c *Client) invalidate(session string) {
	c.mu.Lock()
	if c.session == session {
		c.session = ""
	}
	c.mu.Unlock()
}

// Submit 提交视频 item 的第 frame 帧（frame_idx）；会话失效时重新登录并重试一次
func (c *Client) Submit(ctx context.Context, item string, frame int) (*SubmitResult, error) {
	if item == "" {
		return nil, fmt.Errorf("dres submit requires an item")
	}
	for attempt := 0; ; attempt++ {
		session, err := c.currentSession(ctx)
		if err != nil {
			return nil, err
		}
		res, status, err := c.submit(ctx, session, item, frame)
		if status == http.StatusUnauthorized && attempt == 0 {
			c.invalidate(session)
			continue
		}
		return res, err
	}
}

func (c *Client) submit(ctx context.Context, session, item string, frame int) (*SubmitResult, int, error) {
	params := map[string]string{
		"item":      item,
		"frame":     strconv.Itoa(frame),
		"sessionID": session,
	}
	if c.cfg.EvaluationID != "" {
		params["evaluationId"] = c.cfg.EvaluationID
	}
	var out SubmitResult
	resp, err := c.http.R().SetContext(ctx).
		SetHeader("X-Request-ID", uuid.New().String()).
		SetQueryParams(params).
		SetResult(&out).
		Get("/submit")
	if err != nil {
		metrics.BackendRequests.WithLabelValues(backendName, "error").Inc()
		return nil, 0, fmt.Errorf("DRES 提交失败: %w", err)
	}
	metrics.BackendRequests.WithLabelValues(backendName, strconv.Itoa(resp.StatusCode())).Inc()
	if resp.StatusCode() != http.StatusOK {
		return nil, resp.StatusCode(), fmt.Errorf("DRES 提交返回 %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, resp.StatusCode(), nil
}
