// Package report 定义验证报告模型及其 JSON / 可读文本两种落盘形态。
// 报告一经构建即不可变；差异是数据而非控制流，落盘永远成功执行，
// 仅由调用方根据 Passed 决定进程退出码。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PartCheck: 单个 part 的度量与合规标记。
type PartCheck struct {
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Lines   int64  `json:"lines"`
	BytesOK bool   `json:"bytes_ok"`
	LinesOK bool   `json:"lines_ok"`
	// HeaderMatches: 首行与原始表头逐字节一致；null 表示未检查。
	HeaderMatches *bool `json:"header_matches"`
}

// OK 返回限额合规与否（不含表头检查）。
func (c PartCheck) OK() bool { return c.BytesOK && c.LinesOK }

// Report: 一次验证运行的全部发现。字段与 JSON 序列化一一对应。
type Report struct {
	OriginalFile string      `json:"original_file"`
	PartsDir     string      `json:"parts_dir"`
	GlobPattern  string      `json:"glob_pattern"`
	MaxBytes     int64       `json:"max_bytes"`
	MaxLines     int64       `json:"max_lines"`
	TotalParts   int         `json:"total_parts"`
	Violations   []PartCheck `json:"violations"`
	Passed       bool        `json:"passed"`

	HeaderChecked    bool     `json:"header_checked"`
	HeaderMismatches []string `json:"header_mismatches"`

	OriginalLines           *int64  `json:"original_lines"`
	RecombinedLinesEstimate *int64  `json:"recombined_lines_estimate"`
	RecombinedLinesMatch    *bool   `json:"recombined_lines_match"`
	RecombinedWrittenPath   *string `json:"recombined_written_path"`
}

// EncodeJSON 将报告以缩进 JSON 写出。
func (r *Report) EncodeJSON(w io.Writer) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// EncodeText 将报告渲染为人类可读文本（与 JSON 字段同源）。
func (r *Report) EncodeText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# Sanity Check Report\n\n")
	fmt.Fprintf(&b, "Original file: %s\n", r.OriginalFile)
	fmt.Fprintf(&b, "Parts dir:     %s\n", r.PartsDir)
	fmt.Fprintf(&b, "Pattern:       %s\n", r.GlobPattern)
	fmt.Fprintf(&b, "Max bytes:     %d\n", r.MaxBytes)
	fmt.Fprintf(&b, "Max lines:     %d\n\n", r.MaxLines)
	fmt.Fprintf(&b, "Total parts:   %d\n", r.TotalParts)
	fmt.Fprintf(&b, "Limits OK:     %s\n", yesNo(len(r.Violations) == 0))
	if r.HeaderChecked {
		status := "OK"
		if len(r.HeaderMismatches) > 0 {
			status = "MISMATCHES FOUND"
		}
		fmt.Fprintf(&b, "Header check:  %s\n", status)
	}
	if r.OriginalLines != nil {
		fmt.Fprintf(&b, "Original lines: %d\n", *r.OriginalLines)
	}
	if r.RecombinedLinesEstimate != nil {
		fmt.Fprintf(&b, "Recombined lines (est.): %d\n", *r.RecombinedLinesEstimate)
		match := r.RecombinedLinesMatch != nil && *r.RecombinedLinesMatch
		fmt.Fprintf(&b, "Line count match: %s\n", yesNo(match))
	}
	if r.RecombinedWrittenPath != nil {
		fmt.Fprintf(&b, "Recombined file written: %s\n", *r.RecombinedWrittenPath)
	}
	fmt.Fprintf(&b, "\nPASSED (all checks): %v\n\n", r.Passed)
	if len(r.Violations) > 0 {
		b.WriteString("Violations (limit failures):\n")
		for _, v := range r.Violations {
			fmt.Fprintf(&b, "- %s :: %d bytes (%s), %d lines (%s)\n",
				v.Path, v.Bytes, okBig(v.BytesOK, "Too big"), v.Lines, okBig(v.LinesOK, "Too many"))
		}
	}
	if r.HeaderChecked && len(r.HeaderMismatches) > 0 {
		b.WriteString("\nHeader mismatches:\n")
		for _, p := range r.HeaderMismatches {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func okBig(ok bool, bad string) string {
	if ok {
		return "OK"
	}
	return bad
}
