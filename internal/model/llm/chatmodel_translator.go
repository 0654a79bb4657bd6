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
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"keyframe-search/pkg/metrics"
)

// ChatModelTranslator 基于 eino ChatModel 的翻译器
type ChatModelTranslator struct {
	cm model.BaseChatModel
}

// NewChatModelTranslator 包装任意 eino ChatModel
func NewChatModelTranslator(cm model.BaseChatModel) *ChatModelTranslator {
	return &ChatModelTranslator{cm: cm}
}

// NewChatModelTranslatorFromConfig 以 eino-ext OpenAI ChatModel 创建翻译器
func NewChatModelTranslatorFromConfig(ctx context.Context, apiKey, baseURL, modelName string, timeout time.Duration) (*ChatModelTranslator, error) {
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return NewChatModelTranslator(cm), nil
}

// Translate 实现 Translator
func (t *ChatModelTranslator) Translate(ctx context.Context, text string) (string, error) {
	msg, err := t.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(translatePrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		metrics.BackendRequests.WithLabelValues("translate", "error").Inc()
		return "", fmt.Errorf("调用翻译模型失败: %w", err)
	}
	metrics.BackendRequests.WithLabelValues("translate", "200").Inc()
	if msg == nil {
		return "", fmt.Errorf("翻译模型未返回结果")
	}
	return cleanTranslation(msg.Content), nil
}
