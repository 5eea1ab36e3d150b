package contract

import "errors"

// 最小错误分类哨兵。调用方以 errors.Is 判定，不做字符串匹配。
var (
	// ErrConfigInvalid: 配置不可用（非正限额、缺失必填项等）。
	ErrConfigInvalid = errors.New("config invalid")
	// ErrNotFound: 输入路径缺失或不是常规文件。
	ErrNotFound = errors.New("not found")
	// ErrNoParts: 验证期 glob 未匹配到任何 part。
	ErrNoParts = errors.New("no parts matched")
	// ErrRecordTooLarge: 单条记录无法装入任何合规 part（致命，整体中止）。
	ErrRecordTooLarge = errors.New("record too large")
	// ErrHeaderTooLarge: 表头自身超出字节上限（配置不可满足）。
	ErrHeaderTooLarge = errors.New("header too large")
	// ErrPathInvalid: 目标标识映射为无效/越界路径。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
