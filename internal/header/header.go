// Package header 判定文件首行是表头还是数据行。
//
// 判定是启发式推断而非格式保证：带分隔符且首字段非纯数字的行
// 视为表头。数据特殊的调用方应通过 Mode 强制指定。
package header

import (
	"fmt"
	"strings"
	"unicode"
)

// Mode: 表头判定模式。
type Mode string

const (
	// ModeAuto: 启发式判定（默认）。
	ModeAuto Mode = "auto"
	// ModeOn: 强制视首行为表头（空文件除外）。
	ModeOn Mode = "on"
	// ModeOff: 强制视首行为数据。
	ModeOff Mode = "off"
)

// ParseMode 解析模式名；空串采用 auto。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeOn:
		return ModeOn, nil
	case ModeOff:
		return ModeOff, nil
	default:
		return "", fmt.Errorf("invalid header mode %q (auto|on|off)", s)
	}
}

// Detect 按模式判定首行（含行终止符）是否为表头。
// 空首行恒为否：既非表头也非数据（空文件情形）。
func Detect(mode Mode, delim, firstLine string) bool {
	if firstLine == "" {
		return false
	}
	switch mode {
	case ModeOn:
		return true
	case ModeOff:
		return false
	default:
		return LooksLikeHeader(firstLine, delim)
	}
}

// LooksLikeHeader 启发式：非空、含分隔符、且首字段（去空白）不全为数字。
// 首字段为空串视为非数字（即判为表头）。
func LooksLikeHeader(firstLine, delim string) bool {
	if firstLine == "" {
		return false
	}
	stripped := strings.TrimSpace(firstLine)
	if delim == "" || !strings.Contains(stripped, delim) {
		return false
	}
	first := strings.TrimSpace(stripped[:strings.Index(stripped, delim)])
	return !allDigits(first)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
