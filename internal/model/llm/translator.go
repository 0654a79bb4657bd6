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


// Package llm 查询翻译：把非英文查询转为英文后再交给 CLIP 检索
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"keyframe-search/pkg/config"
)

const translatePrompt = "Translate the following text to English. Reply with the translation only, without quotes or explanations."

// Translator 文本翻译
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// NewTranslator 按配置创建翻译器；未启用时返回 nil
func NewTranslator(ctx context.Context, cfg config.TranslateConfig) (Translator, error) {
	if !cfg.Enable {
		return nil, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("translate api_key not configured")
	}
	timeout := config.Duration(cfg.Timeout, 30*time.Second)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAITranslator(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout), nil
	case "eino":
		t, err := NewChatModelTranslatorFromConfig(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, timeout)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported translate provider: %s", cfg.Provider)
	}
}

func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, "\"“”")
}
