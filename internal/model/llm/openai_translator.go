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


package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"keyframe-search/pkg/metrics"
)

// OpenAITranslator 基于 OpenAI 兼容 Chat Completions 接口
type OpenAITranslator struct {
	cli   *openai.Client
	model string
}

// NewOpenAITranslator 创建翻译器；baseURL 为空时使用官方地址
func NewOpenAITranslator(apiKey, baseURL, model string, timeout time.Duration) *OpenAITranslator {
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAITranslator{cli: openai.NewClientWithConfig(cc), model: model}
}

// Translate 实现 Translator
func (t *OpenAITranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := t.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: translatePrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		status := "error"
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			status = strconv.Itoa(apiErr.HTTPStatusCode)
		}
		metrics.BackendRequests.WithLabelValues("translate", status).Inc()
		return "", fmt.Errorf("调用翻译接口失败: %w", err)
	}
	metrics.BackendRequests.WithLabelValues("translate", "200").Inc()
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("翻译接口未返回结果")
	}
	return cleanTranslation(resp.Choices[0].Message.Content), nil
}
