// Package split 实现拆分引擎：单遍流式消费输入文件，
// 经旋转引擎产出编号 part 文件。
package split

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"csvsplit/internal/diag"
	"csvsplit/internal/header"
	"csvsplit/internal/rotate"
	"csvsplit/internal/textenc"
	"csvsplit/pkg/contract"
)

// Config: 拆分配置（一次校验，运行期只读）。
type Config struct {
	// Input: 输入文件路径（必须存在且为常规文件）。
	Input string
	// OutputDir: 输出目录（不存在则创建）。
	OutputDir string
	// MaxBytes/MaxLines: 单 part 硬上限（均须为正）。
	MaxBytes int64
	MaxLines int64
	// IncludeHeader: 是否将检出的表头复制到每个 part 顶部。
	// 为 false 时检出的表头整行弃置，不进入任何 part。
	IncludeHeader bool
	// HeaderMode: 表头判定模式（auto|on|off）。
	HeaderMode header.Mode
	// Delimiter: 表头启发式使用的分隔符；空串采用 ","。
	Delimiter string
	// Encoding: 文本编码名；空串采用 "utf-8"。
	Encoding string
}

// Result: 一次拆分的不可变结果。
type Result struct {
	// Parts: 实际落盘的 part 数。
	Parts int
	// HasHeader: 首行是否被判定为表头。
	HasHeader bool
	// Header: 判定出的表头（含行终止符）；无表头为空串。
	Header string
	// InputLines: 输入总行数（含表头行）。
	InputLines int64
	// PartPaths: 按序号升序排列的 part 路径。
	PartPaths []string
}

// Run 执行拆分。失败语义：
// 配置/输入错误在任何 part 落盘前返回；流中数据错误（超限记录）
// 即时中止，已关闭的 part 保留在磁盘上。
func Run(ctx context.Context, cfg Config, logger *diag.Logger) (*Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	codec, err := textenc.Resolve(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrConfigInvalid, err)
	}
	delim := cfg.Delimiter
	if delim == "" {
		delim = ","
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var src io.Reader = bufio.NewReaderSize(f, 64*1024)
	br := bufio.NewReader(codec.Reader(src))

	var timer *diag.Timer
	if logger != nil {
		timer = logger.StartWith("split", "run", cfg.Input, "")
	}

	first, eof, err := readLine(br)
	if err != nil {
		return nil, err
	}
	hasHeader := header.Detect(cfg.HeaderMode, delim, first)

	hdr := ""
	if hasHeader && cfg.IncludeHeader {
		hdr = first
	}
	naming := contract.NamingFor(filepath.Base(cfg.Input))
	sink := newFileSink(cfg.OutputDir, naming, codec)
	// 退出路径兜底：正常路径由 Finish 关闭，此处为 no-op。
	defer func() { _ = sink.ClosePart() }()

	rw, err := rotate.New(rotate.Limits{MaxBytes: cfg.MaxBytes, MaxLines: cfg.MaxLines}, sink, codec, hdr)
	if err != nil {
		return nil, err
	}

	var lines int64
	if hdr != "" {
		// 仅含表头的输入也要产出 part0。
		if err := rw.EnsureOpen(); err != nil {
			return nil, err
		}
	}
	if first != "" {
		lines++
		if !hasHeader {
			if err := rw.Admit(first); err != nil {
				return nil, err
			}
		}
	}
	for !eof {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		line, e, err := readLine(br)
		if err != nil {
			return nil, err
		}
		eof = e
		if line == "" {
			continue
		}
		lines++
		if err := rw.Admit(line); err != nil {
			return nil, err
		}
		if t := diag.GetTerminal(); t != nil {
			t.Progress(len(sink.paths), lines)
		}
	}

	parts, err := rw.Finish()
	if err != nil {
		return nil, err
	}
	if timer != nil {
		timer.Finish("run", int64(parts))
	}
	res := &Result{
		Parts:      parts,
		HasHeader:  hasHeader,
		InputLines: lines,
		PartPaths:  append([]string(nil), sink.paths...),
	}
	if hasHeader {
		res.Header = first
	}
	return res, nil
}

func validate(cfg Config) error {
	st, err := os.Stat(cfg.Input)
	if err != nil {
		return fmt.Errorf("%w: input file %s", contract.ErrNotFound, cfg.Input)
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: input is not a regular file: %s", contract.ErrNotFound, cfg.Input)
	}
	if cfg.MaxBytes <= 0 {
		return fmt.Errorf("%w: max_bytes must be a positive integer", contract.ErrConfigInvalid)
	}
	if cfg.MaxLines <= 0 {
		return fmt.Errorf("%w: max_lines must be a positive integer", contract.ErrConfigInvalid)
	}
	return nil
}

// readLine 读取一行（保留行终止符，不做归一）；返回该行与是否 EOF。
// EOF 处的末行可能无终止符，按一行计。
func readLine(br *bufio.Reader) (line string, eof bool, err error) {
	s, err := br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return s, true, nil
		}
		return "", false, err
	}
	return s, false, nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
