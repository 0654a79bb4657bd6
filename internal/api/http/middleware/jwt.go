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


package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"
)

// IdentityKey JWT 中操作员名的 claim
const IdentityKey = "operator"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewJWTAuth 创建操作员 JWT 认证；operators 为 用户名 -> 密码
func NewJWTAuth(key []byte, timeout, maxRefresh time.Duration, operators map[string]string) (*jwt.HertzJWTMiddleware, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("jwt key is required")
	}
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:         "keyframe-search",
		Key:           key,
		Timeout:       timeout,
		MaxRefresh:    maxRefresh,
		IdentityKey:   IdentityKey,
		TokenLookup:   "header: Authorization, query: token",
		TokenHeadName: "Bearer",
		TimeFunc:      time.Now,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if name, ok := data.(string); ok {
				return jwt.MapClaims{IdentityKey: name}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			name, _ := claims[IdentityKey].(string)
			return name
		},
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := json.Unmarshal(c.Request.Body(), &req); err != nil || req.Username == "" || req.Password == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			want, ok := operators[req.Username]
			if !ok || want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(req.Password)) != 1 {
				return nil, jwt.ErrFailedAuthentication
			}
			return req.Username, nil
		},
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			name, ok := data.(string)
			if !ok || name == "" {
				return false
			}
			_, known := operators[name]
			return known
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]string{"error": message})
		},
	})
}
