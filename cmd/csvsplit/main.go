package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cfgpkg "csvsplit/internal/config"
	"csvsplit/internal/diag"
	"csvsplit/internal/header"
	"csvsplit/internal/split"
	"csvsplit/internal/verify"
)

// 测试注入点。
var (
	splitRun  = split.Run
	verifyRun = verify.Run
)

// CLI：两个子命令 split / verify，外加 -init-config。
// 优先级：CLI > ENV(.env) > JSON > 默认值。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先占位默认，稍后在解析/合并配置后重建 logger 以使用最终 level
	logger := diag.NewLogger(corrID, "info")

	args := os.Args[1:]
	if len(args) == 0 {
		usage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "--init-config", "-init-config":
		// 未提供路径值时采用当前目录。
		dir := "."
		if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
			dir = args[1]
		}
		return runInit(dir, logger, start)
	case "split":
		return runSplit(args[1:], logger, corrID, start)
	case "verify":
		return runVerify(args[1:], logger, corrID, start)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return 0
	default:
		fprintf(os.Stderr, "未知子命令: %s\n", args[0])
		usage(os.Stderr)
		return 2
	}
}

func usage(w *os.File) {
	fprintf(w, `用法: csvsplit <split|verify> [flags] <file>

  split   按字节/行数上限拆分带分隔符的文本文件（表头复制到各 part）
  verify  校验既有 part 集并（可选）重组对照原始文件

  csvsplit -init-config [dir]  生成默认 config.json 与 .env 模板

各子命令 flags 见: csvsplit <split|verify> -h
`)
}

func runInit(dir string, logger *diag.Logger, start time.Time) int {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	cfgPath := filepath.Join(dir, "config.json")
	if err := writeConfig(cfgPath, cfgpkg.DefaultTemplateConfig()); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	// 生成 .env 模板（不覆盖已存在文件）。
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return 0
}

func runSplit(args []string, logger *diag.Logger, corrID string, start time.Time) int {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	var (
		flagConfig    string
		flagOut       string
		flagMaxBytes  int64
		flagMaxLines  int64
		flagInclude   string
		flagMode      string
		flagDelimiter string
		flagEncoding  string
		flagStatus    bool
	)
	fs.StringVar(&flagConfig, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	fs.StringVar(&flagOut, "out", "", "part 输出目录（覆盖配置）")
	fs.Int64Var(&flagMaxBytes, "max-bytes", -1, "单 part 最大字节数（覆盖配置）")
	fs.Int64Var(&flagMaxLines, "max-lines", -1, "单 part 最大行数，含表头（覆盖配置）")
	fs.StringVar(&flagInclude, "include-header", "", "是否复制表头到各 part：true|false（覆盖配置；默认 true）")
	fs.StringVar(&flagMode, "header-mode", "", "表头判定：auto|on|off（覆盖配置）")
	fs.StringVar(&flagDelimiter, "delimiter", "", "表头启发式使用的分隔符（覆盖配置；默认 \",\"）")
	fs.StringVar(&flagEncoding, "encoding", "", "文本编码名（覆盖配置；默认 utf-8）")
	fs.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, code := loadConfig(flagConfig, logger, start)
	if code != 0 {
		return code
	}

	// CLI 覆盖
	var overCLI cfgpkg.Config
	if a := fs.Args(); len(a) > 0 {
		overCLI.Split.Input = a[0]
	}
	overCLI.Split.OutputDir = flagOut
	overCLI.Split.MaxBytes = flagMaxBytes
	overCLI.Split.MaxLines = flagMaxLines
	overCLI.Split.HeaderMode = flagMode
	overCLI.Split.Delimiter = flagDelimiter
	overCLI.Encoding = flagEncoding
	if flagInclude != "" {
		v, err := strconv.ParseBool(flagInclude)
		if err != nil {
			fprintf(os.Stderr, "非法 -include-header 值: %q\n", flagInclude)
			return 3
		}
		overCLI.Split.IncludeHeader = &v
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfg.ValidateSplit(); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	logger = rebuildLogger(corrID, cfg)

	if err := preflightOutputDir(cfg.Split.OutputDir); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	if term != nil {
		term.RunStart("split", cfg.Split.Input)
	}

	mode, _ := header.ParseMode(cfg.Split.HeaderMode)
	logger.DebugStart("config", "effective", cfg.Split.Input, "", map[string]string{
		"output_dir":     cfg.Split.OutputDir,
		"max_bytes":      fmt.Sprintf("%d", cfg.Split.MaxBytes),
		"max_lines":      fmt.Sprintf("%d", cfg.Split.MaxLines),
		"include_header": fmt.Sprintf("%v", cfg.Split.IncludeHeaderOrDefault()),
		"header_mode":    string(mode),
		"encoding":       cfg.Encoding,
	})

	res, err := splitRun(context.Background(), split.Config{
		Input:         cfg.Split.Input,
		OutputDir:     cfg.Split.OutputDir,
		MaxBytes:      cfg.Split.MaxBytes,
		MaxLines:      cfg.Split.MaxLines,
		IncludeHeader: cfg.Split.IncludeHeaderOrDefault(),
		HeaderMode:    mode,
		Delimiter:     cfg.Split.Delimiter,
		Encoding:      cfg.Encoding,
	}, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("split", code, "first error", &start)
		diag.IncOp("split", "error", "error")
		if code != "" && code != string(diag.CodeUnknown) {
			diag.IncError("split", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "拆分失败: %v\n", err)
		}
		if term != nil {
			term.RunFinish(false, 0, time.Since(start))
		}
		return 1
	}
	diag.IncOp("split", "finish", "success")
	diag.ObserveDuration("split", "finish", time.Since(start).Milliseconds())
	if term != nil {
		term.RunFinish(true, res.Parts, time.Since(start))
	}
	return 0
}

func runVerify(args []string, logger *diag.Logger, corrID string, start time.Time) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	var (
		flagConfig    string
		flagPartsDir  string
		flagPattern   string
		flagMaxBytes  int64
		flagMaxLines  int64
		flagOut       string
		flagCheck     string
		flagRecombine bool
		flagWrite     bool
		flagEncoding  string
		flagStatus    bool
	)
	fs.StringVar(&flagConfig, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	fs.StringVar(&flagPartsDir, "parts-dir", "", "part 所在目录（覆盖配置）")
	fs.StringVar(&flagPattern, "pattern", "", "part 的 glob 模式（覆盖配置；缺省由原始文件名推导）")
	fs.Int64Var(&flagMaxBytes, "max-bytes", -1, "单 part 最大字节数（覆盖配置）")
	fs.Int64Var(&flagMaxLines, "max-lines", -1, "单 part 最大行数（覆盖配置）")
	fs.StringVar(&flagOut, "out", "", "报告输出目录（覆盖配置；默认 sanity_checks）")
	fs.StringVar(&flagCheck, "check-headers", "", "是否比对各 part 表头：true|false（覆盖配置；默认 true）")
	fs.BoolVar(&flagRecombine, "recombine", false, "估算重组行数并与原始行数对照")
	fs.BoolVar(&flagWrite, "write-recombined", false, "物化重组文件（隐含行数对照）")
	fs.StringVar(&flagEncoding, "encoding", "", "文本编码名（覆盖配置；默认 utf-8）")
	fs.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, code := loadConfig(flagConfig, logger, start)
	if code != 0 {
		return code
	}

	var overCLI cfgpkg.Config
	if a := fs.Args(); len(a) > 0 {
		overCLI.Verify.Original = a[0]
	}
	overCLI.Verify.PartsDir = flagPartsDir
	overCLI.Verify.Pattern = flagPattern
	overCLI.Verify.MaxBytes = flagMaxBytes
	overCLI.Verify.MaxLines = flagMaxLines
	overCLI.Verify.OutputDir = flagOut
	overCLI.Verify.Recombine = flagRecombine
	overCLI.Verify.WriteRecombined = flagWrite
	overCLI.Encoding = flagEncoding
	if flagCheck != "" {
		v, err := strconv.ParseBool(flagCheck)
		if err != nil {
			fprintf(os.Stderr, "非法 -check-headers 值: %q\n", flagCheck)
			return 3
		}
		overCLI.Verify.CheckHeaders = &v
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfg.ValidateVerify(); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	logger = rebuildLogger(corrID, cfg)

	if err := preflightOutputDir(cfg.Verify.OutputDir); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	if term != nil {
		term.RunStart("verify", cfg.Verify.Original)
	}

	rep, err := verifyRun(context.Background(), verify.Config{
		Original:        cfg.Verify.Original,
		PartsDir:        cfg.Verify.PartsDir,
		Pattern:         cfg.Verify.Pattern,
		MaxBytes:        cfg.Verify.MaxBytes,
		MaxLines:        cfg.Verify.MaxLines,
		OutputDir:       cfg.Verify.OutputDir,
		Encoding:        cfg.Encoding,
		CheckHeaders:    cfg.Verify.CheckHeadersOrDefault(),
		Recombine:       cfg.Verify.Recombine,
		WriteRecombined: cfg.Verify.WriteRecombined,
	}, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("verify", code, "first error", &start)
		diag.IncOp("verify", "error", "error")
		if code != "" && code != string(diag.CodeUnknown) {
			diag.IncError("verify", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "验证失败: %v\n", err)
		}
		if term != nil {
			term.RunFinish(false, 0, time.Since(start))
		}
		return 1
	}

	// 报告工件总是落盘；判定差异仅影响退出码。
	jsonPath, textPath, err := verify.WriteArtifacts(rep, cfg.Verify.OutputDir)
	if err != nil {
		fprintf(os.Stderr, "报告写入失败: %v\n", err)
		logger.Error("verify", string(diag.Classify(err)), "first error", &start)
		if term != nil {
			term.RunFinish(false, rep.TotalParts, time.Since(start))
		}
		return 1
	}
	_ = rep.EncodeText(os.Stdout)
	fprintf(os.Stderr, "报告: %s / %s\n", jsonPath, textPath)

	diag.IncOp("verify", "finish", "success")
	diag.ObserveDuration("verify", "finish", time.Since(start).Milliseconds())
	if term != nil {
		term.RunFinish(rep.Passed, rep.TotalParts, time.Since(start))
	}
	if !rep.Passed {
		return 1
	}
	return 0
}

// loadConfig 汇合 默认值 < JSON（文件或 ENV: CSVSPLIT_CONFIG_JSON）< ENV。
// CLI 覆盖由各子命令自行 Merge。
func loadConfig(flagConfig string, logger *diag.Logger, start time.Time) (cfgpkg.Config, int) {
	var cfgJSON []byte
	if s := os.Getenv("CSVSPLIT_CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if flagConfig == "" {
		if s := os.Getenv("CSVSPLIT_CONFIG_FILE"); s != "" {
			flagConfig = s
		}
	}
	// 默认读取工作目录下 config.json（若存在）
	if flagConfig == "" && len(cfgJSON) == 0 {
		if _, err := os.Stat("config.json"); err == nil {
			flagConfig = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(flagConfig, cfgJSON)
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "first error", &start)
			return cfg, 3
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return cfg, 3
	}
	return cfgpkg.Merge(cfg, overEnv), 0
}

// rebuildLogger 使用最终配置中的日志级别重建 logger。
func rebuildLogger(corrID string, cfg cfgpkg.Config) *diag.Logger {
	level := "info"
	if s := strings.TrimSpace(cfg.Logging.Level); s != "" {
		level = s
	}
	return diag.NewLogger(corrID, level)
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, _ = f.Write([]byte("\n"))
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export ".
// - 仅按首个 '=' 分割；key 为左侧去空白；value 去首尾空白；
// - 若 value 被成对的单/双引号包裹，则去除外层引号；双引号内常见转义 \n/\t/\\/\" 作最小处理。
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key == "" {
			continue
		}
		// 去除成对引号
		if len(val) >= 2 {
			if (val[0] == '\'' && val[len(val)-1] == '\'') || (val[0] == '"' && val[len(val)-1] == '"') {
				quoted := val[0]
				val = val[1 : len(val)-1]
				if quoted == '"' {
					// 最小转义处理
					val = strings.ReplaceAll(val, "\\n", "\n")
					val = strings.ReplaceAll(val, "\\t", "\t")
					val = strings.ReplaceAll(val, "\\r", "\r")
					val = strings.ReplaceAll(val, "\\\"", "\"")
					val = strings.ReplaceAll(val, "\\\\", "\\")
				}
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
// 仅创建文件；不覆盖，不合并。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		// 已存在直接跳过
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	var b strings.Builder
	b.WriteString("# csvsplit .env 模板（由 -init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置；按需填写后移除本行注释。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString("CSVSPLIT_CONFIG_FILE=\n")
	b.WriteString("CSVSPLIT_CONFIG_JSON=\n\n")

	b.WriteString("# 通用覆盖\n")
	b.WriteString("CSVSPLIT_LOG_LEVEL=\n")
	b.WriteString("CSVSPLIT_ENCODING=\n\n")

	b.WriteString("# split 覆盖\n")
	b.WriteString("CSVSPLIT_SPLIT_INPUT=\n")
	b.WriteString("CSVSPLIT_SPLIT_OUTPUT_DIR=\n")
	b.WriteString("CSVSPLIT_SPLIT_MAX_BYTES=\n")
	b.WriteString("CSVSPLIT_SPLIT_MAX_LINES=\n")
	b.WriteString("CSVSPLIT_SPLIT_INCLUDE_HEADER=\n")
	b.WriteString("CSVSPLIT_SPLIT_HEADER_MODE=\n")
	b.WriteString("CSVSPLIT_SPLIT_DELIMITER=\n\n")

	b.WriteString("# verify 覆盖\n")
	b.WriteString("CSVSPLIT_VERIFY_ORIGINAL=\n")
	b.WriteString("CSVSPLIT_VERIFY_PARTS_DIR=\n")
	b.WriteString("CSVSPLIT_VERIFY_PATTERN=\n")
	b.WriteString("CSVSPLIT_VERIFY_MAX_BYTES=\n")
	b.WriteString("CSVSPLIT_VERIFY_MAX_LINES=\n")
	b.WriteString("CSVSPLIT_VERIFY_OUTPUT_DIR=\n")
	b.WriteString("CSVSPLIT_VERIFY_CHECK_HEADERS=\n")
	b.WriteString("CSVSPLIT_VERIFY_RECOMBINE=\n")
	b.WriteString("CSVSPLIT_VERIFY_WRITE_RECOMBINED=\n")
	b.WriteString("\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}
	return nil
}

// preflightOutputDir: 启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查父目录是否可写（尝试在父目录创建并删除临时目录）。
func preflightOutputDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil && !st.IsDir() {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(dir)
	if parent == "" || parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
