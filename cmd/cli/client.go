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


package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("KEYFRAME_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient(baseURL string) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
	if tok := os.Getenv("KEYFRAME_TOKEN"); tok != "" {
		c.SetAuthToken(tok)
	}
	return c
}

// apiError 从 {"error": "..."} 响应中取错误信息
func apiError(op string, resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		return fmt.Errorf("%s: %d %s", op, resp.StatusCode(), body.Error)
	}
	return fmt.Errorf("%s: %d %s", op, resp.StatusCode(), resp.String())
}

func health(c *resty.Client) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.R().SetResult(&out).Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError("GET /api/health", resp)
	}
	return out, nil
}

// search 请求体为原始 JSON（阶段数组或 {query, subset, group, limit}）
func search(c *resty.Client, body []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.R().SetBody(body).SetResult(&out).Post("/api/search")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError("POST /api/search", resp)
	}
	return out, nil
}

func export(c *resty.Client, body []byte) ([]byte, error) {
	resp, err := c.R().SetBody(body).Post("/api/search/export")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError("POST /api/search/export", resp)
	}
	return resp.Body(), nil
}

func listClasses(c *resty.Client) ([]map[string]interface{}, error) {
	var out struct {
		Classes []map[string]interface{} `json:"classes"`
	}
	resp, err := c.R().SetResult(&out).Get("/api/objects/classes")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError("GET /api/objects/classes", resp)
	}
	return out.Classes, nil
}

func frameIdx(c *resty.Client, video, frame string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.R().
		SetQueryParams(map[string]string{"videoName": video, "frameName": frame}).
		SetResult(&out).
		Get("/api/keyframes/index")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError("GET /api/keyframes/index", resp)
	}
	return out, nil
}

func translate(c *resty.Client, text string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	resp, err := c.R().SetBody(map[string]string{"text": text}).SetResult(&out).Post("/api/translate")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", apiError("POST /api/translate", resp)
	}
	return out.Text, nil
}

func login(c *resty.Client, user, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := c.R().
		SetBody(map[string]string{"username": user, "password": password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", apiError("POST /api/auth/login", resp)
	}
	return out.Token, nil
}

func submit(c *resty.Client, keyframe string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.R().
		SetBody(map[string]string{"keyframe": keyframe}).
		SetResult(&out).
		Post("/api/dres/submit")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError("POST /api/dres/submit", resp)
	}
	return out, nil
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
