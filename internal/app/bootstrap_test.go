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


package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe-search/pkg/config"
	"keyframe-search/pkg/secrets"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Objects.Type = "memory"
	cfg.Storage.Metadata.Type = "memory"
	cfg.Storage.Cache.Type = "memory"
	cfg.Secrets = secrets.Config{Provider: "memory"}
	cfg.Log.Format = "text"
	return cfg
}

func TestNewBootstrap_Memory(t *testing.T) {
	cfg := memoryConfig()
	cfg.Subsets = map[string]string{"main": "L01, L02"}
	cfg.Storage.KeyframeMap = t.TempDir()
	cfg.Clip.BaseURL = "http://127.0.0.1:1"

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.NotNil(t, b.Engine)
	assert.NotNil(t, b.Objects)
	assert.NotNil(t, b.Metadata)
	assert.NotNil(t, b.Keyframes)
	assert.NotNil(t, b.Clip)
	assert.Nil(t, b.Vectors)
	assert.Nil(t, b.Translator)
	assert.Nil(t, b.DRES)
	assert.Equal(t, []string{"L01", "L02"}, b.Subsets["main"])
}

func TestNewBootstrap_SimilarFramesAndDRES(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Query.SimilarFramesFromVector = true
	cfg.Storage.Vector.Collection = "keyframes"
	cfg.Storage.Vector.Dimension = 4
	cfg.DRES.BaseURL = "http://127.0.0.1:1/api/v1"
	cfg.DRES.Password = "plain"

	b, err := NewBootstrap(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Vectors)
	idx, err := b.Vectors.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keyframes"}, idx)
	assert.NotNil(t, b.DRES)
}

func TestNewBootstrap_SecretResolution(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.DRES.BaseURL = "http://127.0.0.1:1"
	cfg.DRES.Password = "secret://dres/password"

	// memory secret store 每次新建为空，引用无法解析
	_, err := NewBootstrap(ctx, cfg)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.API.Middleware.Operators = map[string]string{"op": "pw"}
	b, err := NewBootstrap(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()
	ops, err := b.Operators(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pw", ops["op"])
}

func TestNewBootstrap_NilConfig(t *testing.T) {
	_, err := NewBootstrap(context.Background(), nil)
	assert.Error(t, err)
}
