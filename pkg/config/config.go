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

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"keyframe-search/pkg/log"
	"keyframe-search/pkg/secrets"
	"keyframe-search/pkg/utils"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig         `mapstructure:"api"`
	Query      QueryConfig       `mapstructure:"query"`
	Clip       ClipConfig        `mapstructure:"clip"`
	Translate  TranslateConfig   `mapstructure:"translate"`
	DRES       DRESConfig        `mapstructure:"dres"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Subsets    map[string]string `mapstructure:"subsets"` // 子集名 -> 逗号分隔的视频名前缀
	Secrets    secrets.Config    `mapstructure:"secrets"`
	Log        log.Config        `mapstructure:"log"`
	Monitoring MonitoringConfig  `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
	// Operators 可登录的操作员 用户名 -> 密码（支持 ${ENV} 与 secret://key）
	Operators map[string]string `mapstructure:"operators"`
}

// QueryConfig 多阶段查询编排配置
type QueryConfig struct {
	MaxObjectCallsPerWave      int    `mapstructure:"max_object_calls_per_wave"`        // 本地层（objects/metadata）每波上限，默认 2
	MaxTextOrImageCallsPerWave int    `mapstructure:"max_text_image_calls_per_wave"`    // 远程层（CLIP 检索）每波上限，默认 1
	StageTimeout               string `mapstructure:"stage_timeout"`                    // 单阶段超时，默认 5s
	MinTopK                    int    `mapstructure:"min_top_k"`                        // 排序类阶段 topK 下限，默认 16
	ExportLimit                int    `mapstructure:"export_limit"`                     // 导出条数，默认 100
	FilterConcurrency          int    `mapstructure:"filter_concurrency"`               // 对象后过滤并发，默认 16
	SimilarFramesFromVector    bool   `mapstructure:"similar_frames_from_vector_store"` // keyframes(image_id) 走向量库
}

// ClipConfig CLIP 检索后端配置
type ClipConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	Timeout       string  `mapstructure:"timeout"`
	RetryCount    int     `mapstructure:"retry_count"`
	RPS           float64 `mapstructure:"rps"`
	Burst         int     `mapstructure:"burst"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
	ImageBaseURL  string  `mapstructure:"image_base_url"` // 关键帧图片服务，用于按 id 取图
}

// TranslateConfig 查询翻译（OpenAI 兼容接口）
type TranslateConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Provider string `mapstructure:"provider"` // openai（默认）| eino
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	Timeout  string `mapstructure:"timeout"`
}

// DRESConfig DRES 评测服务配置
type DRESConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	EvaluationID string `mapstructure:"evaluation_id"`
	Timeout      string `mapstructure:"timeout"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Objects     ObjectsConfig  `mapstructure:"objects"`
	Metadata    MetadataConfig `mapstructure:"metadata"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Vector      VectorConfig   `mapstructure:"vector"`
	KeyframeMap string         `mapstructure:"keyframe_map"` // map-keyframes 目录
}

// ObjectsConfig 目标检测存储配置
type ObjectsConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`
	PoolSize int    `mapstructure:"pool_size"`
	Seed     string `mapstructure:"seed"`      // memory 时可选的 JSON 种子文件
	CacheTTL string `mapstructure:"cache_ttl"` // 单帧检测结果缓存时长，空表示不缓存
}

// MetadataConfig 视频元数据存储配置
type MetadataConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`
	PoolSize int    `mapstructure:"pool_size"`
	Seed     string `mapstructure:"seed"`
}

// VectorConfig 关键帧向量存储配置
type VectorConfig struct {
	Type       string `mapstructure:"type"` // memory | pgvector | milvus
	Addr       string `mapstructure:"addr"` // milvus 地址
	DSN        string `mapstructure:"dsn"`  // pgvector 连接串
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml，可由 KEYFRAME_CONFIG 覆盖）
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("KEYFRAME_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}

var envPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// expandEnv 将 "${VAR}" 替换为环境变量值；变量未设置时保留原值
func expandEnv(s string) string {
	m := envPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	if val := os.Getenv(m[1]); val != "" {
		return val
	}
	return s
}

// replaceEnvVars 替换配置中的环境变量（密钥与连接串）
func replaceEnvVars(c *Config) {
	c.Translate.APIKey = expandEnv(c.Translate.APIKey)
	c.DRES.Username = expandEnv(c.DRES.Username)
	c.DRES.Password = expandEnv(c.DRES.Password)
	c.Storage.Objects.DSN = expandEnv(c.Storage.Objects.DSN)
	c.Storage.Metadata.DSN = expandEnv(c.Storage.Metadata.DSN)
	c.Storage.Vector.DSN = expandEnv(c.Storage.Vector.DSN)
	c.Storage.Cache.Password = expandEnv(c.Storage.Cache.Password)
	c.API.Middleware.JWTKey = expandEnv(c.API.Middleware.JWTKey)
	c.Secrets.Vault.Token = expandEnv(c.Secrets.Vault.Token)
	for user, pw := range c.API.Middleware.Operators {
		c.API.Middleware.Operators[user] = expandEnv(pw)
	}
}

func (c *Config) applyDefaults() {
	c.API.Port = utils.PositiveInt(c.API.Port, 8080)
	c.API.Host = utils.CoalesceString(c.API.Host, "0.0.0.0")

	q := &c.Query
	q.MaxObjectCallsPerWave = utils.PositiveInt(q.MaxObjectCallsPerWave, 2)
	q.MaxTextOrImageCallsPerWave = utils.PositiveInt(q.MaxTextOrImageCallsPerWave, 1)
	q.StageTimeout = utils.CoalesceString(q.StageTimeout, "5s")
	q.MinTopK = utils.PositiveInt(q.MinTopK, 16)
	q.ExportLimit = utils.PositiveInt(q.ExportLimit, 100)
	q.FilterConcurrency = utils.PositiveInt(q.FilterConcurrency, 16)

	st := &c.Storage
	st.Objects.Type = utils.CoalesceString(st.Objects.Type, "memory")
	st.Metadata.Type = utils.CoalesceString(st.Metadata.Type, "memory")
	st.Cache.Type = utils.CoalesceString(st.Cache.Type, "memory")
	st.Vector.Collection = utils.CoalesceString(st.Vector.Collection, "keyframes")
	c.Monitoring.Tracing.ServiceName = utils.CoalesceString(c.Monitoring.Tracing.ServiceName, "keyframe-search")
}

// Validate 校验配置中的时长字段与存储类型
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"api.timeout":               c.API.Timeout,
		"query.stage_timeout":       c.Query.StageTimeout,
		"clip.timeout":              c.Clip.Timeout,
		"dres.timeout":              c.DRES.Timeout,
		"translate.timeout":         c.Translate.Timeout,
		"storage.objects.cache_ttl": c.Storage.Objects.CacheTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("配置项 %s 不是合法时长 %q: %w", name, v, err)
		}
	}
	for name, typ := range map[string]string{
		"storage.objects.type":  c.Storage.Objects.Type,
		"storage.metadata.type": c.Storage.Metadata.Type,
	} {
		if typ != "memory" && typ != "postgres" {
			return fmt.Errorf("配置项 %s 不支持: %s", name, typ)
		}
	}
	return nil
}

// Duration 解析时长，空串或非法值返回 def
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
