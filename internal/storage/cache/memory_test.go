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


package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"keyframe-search/pkg/config"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v []string
	if err := s.Get(ctx, "k1", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v) != 2 || v[1] != "b" {
		t.Errorf("Get: got %v", v)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "k1", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after Delete: expected ErrMiss, got %v", err)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Errorf("Delete missing should not error: %v", err)
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", 1, time.Minute)
	ok, _ := s.Exists(ctx, "k")
	if !ok {
		t.Fatal("expected key before expiry")
	}
	now = now.Add(time.Minute)
	ok, _ = s.Exists(ctx, "k")
	if ok {
		t.Error("expected key expired")
	}
	var v int
	if err := s.Get(ctx, "k", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryStore_UnmarshalError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "k", "text", 0)
	var v int
	err := s.Get(ctx, "k", &v)
	if err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestNewCache(t *testing.T) {
	s, err := NewCache(context.Background(), config.CacheConfig{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", s)
	}
	if _, err := NewCache(context.Background(), config.CacheConfig{Type: "memcached"}); err == nil {
		t.Error("expected error for unknown cache type")
	}
}

func TestRedisOptions_Defaults(t *testing.T) {
	opts := RedisOptions(config.CacheConfig{DB: 3})
	if opts.Addr != "localhost:6379" || opts.DB != 3 {
		t.Errorf("unexpected options: %+v", opts)
	}
}

// 设置 KEYFRAME_TEST_REDIS=host:port 时对真实 Redis 运行
func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("KEYFRAME_TEST_REDIS")
	if addr == "" {
		t.Skip("KEYFRAME_TEST_REDIS not set")
	}
	ctx := context.Background()
	s, err := NewCache(ctx, config.CacheConfig{Type: "redis", Addr: addr})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer s.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	if err := s.Set(ctx, key, map[string]int{"car": 2}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got map[string]int
	if err := s.Get(ctx, key, &got); err != nil || got["car"] != 2 {
		t.Fatalf("Get: %v %v", got, err)
	}
	_ = s.Delete(ctx, key)
	if err := s.Get(ctx, key, &got); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}
