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

// Package secrets 凭据读取：DRES 账号、模型 API Key 等不落入配置文件
package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error
}

// Config Secret Store 配置
type Config struct {
	Provider string      `mapstructure:"provider"` // vault | env | memory
	Vault    VaultConfig `mapstructure:"vault"`
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 解析 "secret://key" 形式的引用；普通字符串原样返回
func Resolve(ctx context.Context, s Store, value string) (string, error) {
	key, ok := strings.CutPrefix(value, "secret://")
	if !ok {
		return value, nil
	}
	if s == nil {
		return "", fmt.Errorf("secret store not configured for %q", key)
	}
	return s.Get(ctx, key)
}
