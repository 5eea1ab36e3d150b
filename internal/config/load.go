package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"csvsplit/internal/header"
	"csvsplit/pkg/contract"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：限额不设默认（必须由 JSON/ENV/CLI 提供），以 -1 标记未设置。
func Defaults() Config {
	return Config{
		Logging:  Logging{Level: "info"},
		Encoding: "utf-8",
		Split: Split{
			OutputDir:  ".",
			MaxBytes:   -1,
			MaxLines:   -1,
			HeaderMode: "auto",
			Delimiter:  ",",
		},
		Verify: Verify{
			MaxBytes:  -1,
			MaxLines:  -1,
			OutputDir: "sanity_checks",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串为"替换"；不做深度合并。
// 约定：限额非正值视为"未覆盖"（限额必须为正，0 无合法语义）。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Encoding); s != "" {
		out.Encoding = s
	}

	if over.Split.Input != "" {
		out.Split.Input = over.Split.Input
	}
	if over.Split.OutputDir != "" {
		out.Split.OutputDir = over.Split.OutputDir
	}
	if over.Split.MaxBytes > 0 {
		out.Split.MaxBytes = over.Split.MaxBytes
	}
	if over.Split.MaxLines > 0 {
		out.Split.MaxLines = over.Split.MaxLines
	}
	if over.Split.IncludeHeader != nil {
		v := *over.Split.IncludeHeader
		out.Split.IncludeHeader = &v
	}
	if over.Split.HeaderMode != "" {
		out.Split.HeaderMode = over.Split.HeaderMode
	}
	if over.Split.Delimiter != "" {
		out.Split.Delimiter = over.Split.Delimiter
	}

	if over.Verify.Original != "" {
		out.Verify.Original = over.Verify.Original
	}
	if over.Verify.PartsDir != "" {
		out.Verify.PartsDir = over.Verify.PartsDir
	}
	if over.Verify.Pattern != "" {
		out.Verify.Pattern = over.Verify.Pattern
	}
	if over.Verify.MaxBytes > 0 {
		out.Verify.MaxBytes = over.Verify.MaxBytes
	}
	if over.Verify.MaxLines > 0 {
		out.Verify.MaxLines = over.Verify.MaxLines
	}
	if over.Verify.OutputDir != "" {
		out.Verify.OutputDir = over.Verify.OutputDir
	}
	if over.Verify.CheckHeaders != nil {
		v := *over.Verify.CheckHeaders
		out.Verify.CheckHeaders = &v
	}
	if over.Verify.Recombine {
		out.Verify.Recombine = true
	}
	if over.Verify.WriteRecombined {
		out.Verify.WriteRecombined = true
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 CSVSPLIT_；匹配本集合之外的键忽略。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "CSVSPLIT_") {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len("CSVSPLIT_") {
			continue
		}
		nk := strings.TrimPrefix(kv[:eq], "CSVSPLIT_")
		val := kv[eq+1:]
		switch nk {
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "ENCODING":
			over.Encoding = strings.TrimSpace(val)
		case "SPLIT_INPUT":
			over.Split.Input = strings.TrimSpace(val)
		case "SPLIT_OUTPUT_DIR":
			over.Split.OutputDir = strings.TrimSpace(val)
		case "SPLIT_MAX_BYTES":
			if v, err := atoi64(val); err == nil {
				over.Split.MaxBytes = v
			}
		case "SPLIT_MAX_LINES":
			if v, err := atoi64(val); err == nil {
				over.Split.MaxLines = v
			}
		case "SPLIT_INCLUDE_HEADER":
			if v, err := parseBool(val); err == nil {
				over.Split.IncludeHeader = &v
			}
		case "SPLIT_HEADER_MODE":
			over.Split.HeaderMode = strings.TrimSpace(val)
		case "SPLIT_DELIMITER":
			over.Split.Delimiter = val
		case "VERIFY_ORIGINAL":
			over.Verify.Original = strings.TrimSpace(val)
		case "VERIFY_PARTS_DIR":
			over.Verify.PartsDir = strings.TrimSpace(val)
		case "VERIFY_PATTERN":
			over.Verify.Pattern = strings.TrimSpace(val)
		case "VERIFY_MAX_BYTES":
			if v, err := atoi64(val); err == nil {
				over.Verify.MaxBytes = v
			}
		case "VERIFY_MAX_LINES":
			if v, err := atoi64(val); err == nil {
				over.Verify.MaxLines = v
			}
		case "VERIFY_OUTPUT_DIR":
			over.Verify.OutputDir = strings.TrimSpace(val)
		case "VERIFY_CHECK_HEADERS":
			if v, err := parseBool(val); err == nil {
				over.Verify.CheckHeaders = &v
			}
		case "VERIFY_RECOMBINE":
			if v, err := parseBool(val); err == nil {
				over.Verify.Recombine = v
			}
		case "VERIFY_WRITE_RECOMBINED":
			if v, err := parseBool(val); err == nil {
				over.Verify.WriteRecombined = v
			}
		default:
			// 集合之外的键忽略。
		}
	}
	return over, nil
}

// ValidateSplit 校验 split 子命令所需字段（路径存在性由引擎再核）。
func (c Config) ValidateSplit() error {
	if strings.TrimSpace(c.Split.Input) == "" {
		return fmt.Errorf("%w: split.input is required", contract.ErrConfigInvalid)
	}
	if c.Split.MaxBytes <= 0 {
		return fmt.Errorf("%w: split.max_bytes must be a positive integer", contract.ErrConfigInvalid)
	}
	if c.Split.MaxLines <= 0 {
		return fmt.Errorf("%w: split.max_lines must be a positive integer", contract.ErrConfigInvalid)
	}
	if _, err := header.ParseMode(c.Split.HeaderMode); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfigInvalid, err)
	}
	return nil
}

// ValidateVerify 校验 verify 子命令所需字段。
func (c Config) ValidateVerify() error {
	if strings.TrimSpace(c.Verify.Original) == "" {
		return fmt.Errorf("%w: verify.original is required", contract.ErrConfigInvalid)
	}
	if strings.TrimSpace(c.Verify.PartsDir) == "" {
		return fmt.Errorf("%w: verify.parts_dir is required", contract.ErrConfigInvalid)
	}
	if c.Verify.MaxBytes <= 0 {
		return fmt.Errorf("%w: verify.max_bytes must be a positive integer", contract.ErrConfigInvalid)
	}
	if c.Verify.MaxLines <= 0 {
		return fmt.Errorf("%w: verify.max_lines must be a positive integer", contract.ErrConfigInvalid)
	}
	return nil
}

func atoi64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}
