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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !json.Valid(body) || bytes.Equal(bytes.TrimSpace(body), []byte("[]")) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"no query stages submitted"}`))
			return
		}
		_, _ = w.Write([]byte(`{"query_id":"q-1","keyframes":["L01_V001-2"]}`))
	})
	mux.HandleFunc("/api/search/export", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("L01_V001,125\n"))
	})
	mux.HandleFunc("/api/objects/classes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"classes":[{"className":"car","count":3}]}`))
	})
	mux.HandleFunc("/api/keyframes/index", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("frameName") != "002" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"videoName":"L01_V001","frameIdx":125}`))
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"token":"tok-1"}`))
	})
	mux.HandleFunc("/api/dres/submit", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"auth header is empty"}`))
			return
		}
		_, _ = w.Write([]byte(`{"frameIdx":125,"result":{"submission":"CORRECT"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Setenv("KEYFRAME_API_URL", srv.URL)
	t.Setenv("KEYFRAME_TOKEN", "")
	return srv
}

func runCLI(args []string, stdin string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, out, _ := runCLI(nil, "")
	if code != 0 || !strings.Contains(out, "Usage: keyframe") {
		t.Fatalf("code=%d out=%s", code, out)
	}
	if code, _, _ := runCLI([]string{"bogus"}, ""); code != 1 {
		t.Fatalf("unknown command exit = %d, want 1", code)
	}
}

func TestRun_HealthAndClasses(t *testing.T) {
	newFakeAPI(t)
	code, out, errOut := runCLI([]string{"health"}, "")
	if code != 0 || !strings.Contains(out, `"status": "ok"`) {
		t.Fatalf("health: code=%d out=%s err=%s", code, out, errOut)
	}
	code, out, _ = runCLI([]string{"classes"}, "")
	if code != 0 || out != "car\t3\n" {
		t.Fatalf("classes: code=%d out=%q", code, out)
	}
}

func TestRun_SearchFromFileAndStdin(t *testing.T) {
	newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "q.json")
	if err := os.WriteFile(path, []byte(`[{"type":"text","queryData":{"query":"car"},"topK":16}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCLI([]string{"search", path}, "")
	if code != 0 || !strings.Contains(out, "L01_V001-2") {
		t.Fatalf("search file: code=%d out=%s err=%s", code, out, errOut)
	}

	code, _, errOut = runCLI([]string{"search", "-"}, "[]")
	if code != 1 || !strings.Contains(errOut, "no query stages submitted") {
		t.Fatalf("search stdin: code=%d err=%s", code, errOut)
	}

	code, out, _ = runCLI([]string{"export", "-"}, `[{"type":"text"}]`)
	if code != 0 || out != "L01_V001,125\n" {
		t.Fatalf("export: code=%d out=%q", code, out)
	}
}

func TestRun_FrameIdx(t *testing.T) {
	newFakeAPI(t)
	code, out, _ := runCLI([]string{"frame-idx", "L01_V001", "002"}, "")
	if code != 0 || out != "L01_V001,125\n" {
		t.Fatalf("frame-idx: code=%d out=%q", code, out)
	}
	code, _, errOut := runCLI([]string{"frame-idx", "L01_V001", "009"}, "")
	if code != 1 || !strings.Contains(errOut, "404") {
		t.Fatalf("frame-idx missing: code=%d err=%s", code, errOut)
	}
}

func TestRun_SubmitLogsIn(t *testing.T) {
	newFakeAPI(t)
	t.Setenv("KEYFRAME_USER", "")
	code, _, errOut := runCLI([]string{"submit", "L01_V001-2"}, "")
	if code != 1 || !strings.Contains(errOut, "401") {
		t.Fatalf("submit without login: code=%d err=%s", code, errOut)
	}

	t.Setenv("KEYFRAME_USER", "op")
	t.Setenv("KEYFRAME_PASSWORD", "pw")
	code, out, errOut := runCLI([]string{"submit", "L01_V001-2"}, "")
	if code != 0 || !strings.Contains(out, "CORRECT") {
		t.Fatalf("submit: code=%d out=%s err=%s", code, out, errOut)
	}
}
