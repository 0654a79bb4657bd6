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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
  host: "127.0.0.1"
query:
  max_object_calls_per_wave: 3
  stage_timeout: "2s"
subsets:
  kis: "L01,L02"
log:
  level: "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Query.MaxObjectCallsPerWave != 3 {
		t.Errorf("MaxObjectCallsPerWave: got %d", cfg.Query.MaxObjectCallsPerWave)
	}
	if cfg.Query.MaxTextOrImageCallsPerWave != 1 {
		t.Errorf("MaxTextOrImageCallsPerWave default: got %d", cfg.Query.MaxTextOrImageCallsPerWave)
	}
	if cfg.Subsets["kis"] != "L01,L02" {
		t.Errorf("Subsets: got %v", cfg.Subsets)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "api:\n  port: 8081\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Query.MaxObjectCallsPerWave != 2 || cfg.Query.MinTopK != 16 || cfg.Query.ExportLimit != 100 {
		t.Errorf("query defaults not applied: %+v", cfg.Query)
	}
	if cfg.Query.StageTimeout != "5s" {
		t.Errorf("StageTimeout default: got %q", cfg.Query.StageTimeout)
	}
	if cfg.Storage.Objects.Type != "memory" || cfg.Storage.Cache.Type != "memory" {
		t.Errorf("storage defaults not applied: %+v", cfg.Storage)
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("DRES_PASSWORD", "pw")
	cfg, err := LoadConfig(writeConfig(t, `
dres:
  username: "team"
  password: "${DRES_PASSWORD}"
translate:
  api_key: "${UNSET_TRANSLATE_KEY}"
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DRES.Password != "pw" {
		t.Errorf("DRES.Password: got %q", cfg.DRES.Password)
	}
	if cfg.Translate.APIKey != "${UNSET_TRANSLATE_KEY}" {
		t.Errorf("unset env should be kept: got %q", cfg.Translate.APIKey)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "query:\n  stage_timeout: \"soon\"\n")); err == nil {
		t.Error("expected error for bad duration")
	}
	if _, err := LoadConfig(writeConfig(t, "storage:\n  objects:\n    type: \"mongo\"\n")); err == nil {
		t.Error("expected error for unsupported store type")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("empty: got %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("250ms: got %v", got)
	}
	if got := Duration("bad", time.Second); got != time.Second {
		t.Errorf("bad: got %v", got)
	}
}
