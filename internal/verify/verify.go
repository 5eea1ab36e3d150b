// Package verify 实现验证/重组引擎：独立于拆分引擎重新推导
// 表头与行数核算，校验既有 part 集与原始文件的一致性。
//
// 差异（限额违例、表头不匹配、重组行数不符）是报告数据而非控制流：
// 运行总是完成并产出报告工件，仅退出码反映最终判定。
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"csvsplit/internal/diag"
	"csvsplit/internal/report"
	"csvsplit/internal/textenc"
	"csvsplit/pkg/contract"
)

// Config: 验证配置（一次校验，运行期只读）。
type Config struct {
	// Original: 原始文件路径（表头基准与完整性对照）。
	Original string
	// PartsDir: part 所在目录。
	PartsDir string
	// Pattern: part 的 glob 模式；空串由原始文件名推导 <stem>-part*<ext>。
	Pattern string
	// MaxBytes/MaxLines: 单 part 限额（均须为正）。
	MaxBytes int64
	MaxLines int64
	// OutputDir: 报告（及可选重组文件）输出目录。
	OutputDir string
	// Encoding: 文本编码名；空串采用 "utf-8"。
	Encoding string
	// CheckHeaders: 逐字节比对各 part 首行与原始表头。
	CheckHeaders bool
	// Recombine: 估算重组行数并与原始行数对照（不写文件）。
	Recombine bool
	// WriteRecombined: 物化重组文件（可能很大）。隐含行数对照。
	WriteRecombined bool
}

// Run 执行验证并返回报告。报告工件的落盘由调用方负责
// （WriteArtifacts），以便测试直接断言内存中的报告。
func Run(ctx context.Context, cfg Config, logger *diag.Logger) (*report.Report, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	codec, err := textenc.Resolve(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrConfigInvalid, err)
	}

	naming := contract.NamingFor(filepath.Base(cfg.Original))
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = naming.Glob()
	}

	var timer *diag.Timer
	if logger != nil {
		timer = logger.StartWith("verify", "run", cfg.Original, "")
	}

	// 原始文件基准：首行即表头基准（不重跑分类器），行数为对照值。
	origHeader, err := firstLine(cfg.Original, codec)
	if err != nil {
		return nil, err
	}
	origLines, err := countLines(cfg.Original, codec)
	if err != nil {
		return nil, err
	}

	stats, mismatches, err := discover(ctx, cfg.PartsDir, pattern, codec, origHeader, cfg.CheckHeaders)
	if err != nil {
		return nil, err
	}

	// 表头匹配标记：未检查时假定全部复制表头（拆分引擎默认行为）。
	// 这是文档化假定而非测量值，报告以 header_checked=false 标示。
	matches := make([]bool, len(stats))
	for i := range matches {
		if stats[i].HeaderMatch != nil {
			matches[i] = *stats[i].HeaderMatch
		} else {
			matches[i] = true
		}
	}

	var violations []report.PartCheck
	for _, s := range stats {
		c := report.PartCheck{
			Path:          s.Path,
			Bytes:         s.Bytes,
			Lines:         s.Lines,
			BytesOK:       s.Bytes <= cfg.MaxBytes,
			LinesOK:       s.Lines <= cfg.MaxLines,
			HeaderMatches: s.HeaderMatch,
		}
		if c.OK() {
			continue
		}
		violations = append(violations, c)
		if logger != nil {
			logger.Warn("verify", "limit violation", c.Path, map[string]string{
				"bytes": fmt.Sprintf("%d", c.Bytes),
				"lines": fmt.Sprintf("%d", c.Lines),
			})
		}
	}

	rep := &report.Report{
		OriginalFile:     cfg.Original,
		PartsDir:         cfg.PartsDir,
		GlobPattern:      pattern,
		MaxBytes:         cfg.MaxBytes,
		MaxLines:         cfg.MaxLines,
		TotalParts:       len(stats),
		Violations:       violations,
		HeaderChecked:    cfg.CheckHeaders,
		HeaderMismatches: mismatches,
		OriginalLines:    &origLines,
	}

	if cfg.Recombine || cfg.WriteRecombined {
		est := estimate(stats, matches)
		rep.RecombinedLinesEstimate = &est
		match := est == origLines
		rep.RecombinedLinesMatch = &match
	}
	if cfg.WriteRecombined {
		outPath := filepath.Join(cfg.OutputDir, naming.RecombinedName())
		written, err := materialize(ctx, stats, matches, outPath, origHeader, codec)
		if err != nil {
			return nil, err
		}
		rep.RecombinedWrittenPath = &outPath
		// 实际写出行数优先于估算（罕见分歧，如畸形表头），
		// 判定以写出值重新计算。
		if *rep.RecombinedLinesEstimate != written {
			*rep.RecombinedLinesEstimate = written
		}
		match := written == origLines
		rep.RecombinedLinesMatch = &match
	}

	passed := len(violations) == 0
	if cfg.CheckHeaders {
		passed = passed && len(mismatches) == 0
	}
	if rep.RecombinedLinesMatch != nil {
		passed = passed && *rep.RecombinedLinesMatch
	}
	rep.Passed = passed

	if timer != nil {
		timer.Finish("run", int64(len(stats)))
	}
	return rep, nil
}

// WriteArtifacts 将报告以 JSON 与可读文本两种形态原子落盘，
// 返回两个文件路径。验证差异不影响落盘：工件总是产出。
func WriteArtifacts(rep *report.Report, outputDir string) (jsonPath, textPath string, err error) {
	jsonPath = filepath.Join(outputDir, "sanity_report.json")
	textPath = filepath.Join(outputDir, "sanity_report.txt")
	if err := report.AtomicWrite(jsonPath, 0o644, func(w io.Writer) error {
		return rep.EncodeJSON(w)
	}); err != nil {
		return "", "", err
	}
	if err := report.AtomicWrite(textPath, 0o644, func(w io.Writer) error {
		return rep.EncodeText(w)
	}); err != nil {
		return "", "", err
	}
	return jsonPath, textPath, nil
}

func validate(cfg Config) error {
	st, err := os.Stat(cfg.Original)
	if err != nil || !st.Mode().IsRegular() {
		return fmt.Errorf("%w: original file %s", contract.ErrNotFound, cfg.Original)
	}
	dst, err := os.Stat(cfg.PartsDir)
	if err != nil || !dst.IsDir() {
		return fmt.Errorf("%w: parts directory %s", contract.ErrNotFound, cfg.PartsDir)
	}
	if cfg.MaxBytes <= 0 {
		return fmt.Errorf("%w: max_bytes must be a positive integer", contract.ErrConfigInvalid)
	}
	if cfg.MaxLines <= 0 {
		return fmt.Errorf("%w: max_lines must be a positive integer", contract.ErrConfigInvalid)
	}
	return nil
}
