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
	"fmt"
	"io"
	"os"
	"strings"

	"keyframe-search/pkg/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: keyframe <command> [args]")
	fmt.Fprintln(w, "  version                     - 显示版本")
	fmt.Fprintln(w, "  health                      - 检查 API 服务状态")
	fmt.Fprintln(w, "  config                      - 显示配置概要")
	fmt.Fprintln(w, "  search <file|->             - 执行多阶段查询（JSON 阶段数组或 {query,...}）")
	fmt.Fprintln(w, "  export <file|->             - 导出前 N 个结果为 CSV")
	fmt.Fprintln(w, "  classes                     - 列出目标检测类别")
	fmt.Fprintln(w, "  frame-idx <video> <frame>   - 查询关键帧对应的帧号")
	fmt.Fprintln(w, "  translate <text>            - 翻译为英文")
	fmt.Fprintln(w, "  submit <VIDEO-FRAME>        - 提交到 DRES（KEYFRAME_USER/KEYFRAME_PASSWORD 或 KEYFRAME_TOKEN）")
}

// run 执行子命令并返回退出码
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}
	c := newClient(apiBaseURL())
	cmd, rest := args[0], args[1:]

	fail := func(format string, a ...interface{}) int {
		fmt.Fprintf(stderr, format+"\n", a...)
		return 1
	}
	readBody := func() ([]byte, error) {
		if len(rest) < 1 {
			return nil, fmt.Errorf("Usage: keyframe %s <file|->", cmd)
		}
		if rest[0] == "-" {
			return io.ReadAll(stdin)
		}
		return os.ReadFile(rest[0])
	}

	switch cmd {
	case "version":
		fmt.Fprintln(stdout, "keyframe-search cli 0.1.0")
	case "health":
		out, err := health(c)
		if err != nil {
			return fail("健康检查失败: %v", err)
		}
		fmt.Fprintln(stdout, prettyJSON(out))
	case "config":
		cfg, err := config.LoadAPIConfig()
		if err != nil {
			return fail("加载配置失败: %v", err)
		}
		fmt.Fprintf(stdout, "api=%s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Fprintf(stdout, "clip.base_url=%s\n", cfg.Clip.BaseURL)
		fmt.Fprintf(stdout, "storage.objects=%s storage.metadata=%s storage.cache=%s\n",
			cfg.Storage.Objects.Type, cfg.Storage.Metadata.Type, cfg.Storage.Cache.Type)
		fmt.Fprintf(stdout, "query.stage_timeout=%s waves=%d/%d\n",
			cfg.Query.StageTimeout, cfg.Query.MaxObjectCallsPerWave, cfg.Query.MaxTextOrImageCallsPerWave)
	case "search":
		body, err := readBody()
		if err != nil {
			return fail("%v", err)
		}
		out, err := search(c, body)
		if err != nil {
			return fail("查询失败: %v", err)
		}
		fmt.Fprintln(stdout, prettyJSON(out))
	case "export":
		body, err := readBody()
		if err != nil {
			return fail("%v", err)
		}
		csv, err := export(c, body)
		if err != nil {
			return fail("导出失败: %v", err)
		}
		_, _ = stdout.Write(csv)
	case "classes":
		classes, err := listClasses(c)
		if err != nil {
			return fail("列出类别失败: %v", err)
		}
		for _, cl := range classes {
			fmt.Fprintf(stdout, "%v\t%v\n", cl["className"], cl["count"])
		}
	case "frame-idx":
		if len(rest) < 2 {
			return fail("Usage: keyframe frame-idx <video> <frame>")
		}
		out, err := frameIdx(c, rest[0], rest[1])
		if err != nil {
			return fail("查询帧号失败: %v", err)
		}
		fmt.Fprintf(stdout, "%v,%v\n", out["videoName"], out["frameIdx"])
	case "translate":
		if len(rest) < 1 {
			return fail("Usage: keyframe translate <text>")
		}
		text, err := translate(c, strings.Join(rest, " "))
		if err != nil {
			return fail("翻译失败: %v", err)
		}
		fmt.Fprintln(stdout, text)
	case "submit":
		if len(rest) < 1 {
			return fail("Usage: keyframe submit <VIDEO-FRAME>")
		}
		if user := os.Getenv("KEYFRAME_USER"); user != "" {
			tok, err := login(c, user, os.Getenv("KEYFRAME_PASSWORD"))
			if err != nil {
				return fail("登录失败: %v", err)
			}
			c.SetAuthToken(tok)
		}
		out, err := submit(c, rest[0])
		if err != nil {
			return fail("提交失败: %v", err)
		}
		fmt.Fprintln(stdout, prettyJSON(out))
	default:
		printUsage(stderr)
		return 1
	}
	return 0
}
