package verify

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"csvsplit/internal/report"
	"csvsplit/internal/textenc"
	"csvsplit/pkg/contract"
)

// 重组核算：估算路径与物化路径共享同一套逐 part 计数规则，
// 避免两处实现漂移。物化时以实际写出行数为准（优先于估算）。

// estimate 按度量值推导重组后的逻辑行数：
//   - part0：表头匹配时贡献 1 + max(lines-1, 0)（表头槽位保留一次）；
//     否则 1 + lines（合成原始表头置顶，part0 全部为数据）。
//   - part≥1：匹配时贡献 lines-1（弃置复制表头），否则 lines。
func estimate(stats []contract.PartStat, matches []bool) int64 {
	var total int64
	for i, s := range stats {
		total += contribution(i, s.Lines, matches[i])
	}
	return total
}

func contribution(i int, lines int64, headerMatch bool) int64 {
	if i == 0 {
		if headerMatch {
			return 1 + max64(lines-1, 0)
		}
		return 1 + lines
	}
	if headerMatch {
		return max64(lines-1, 0)
	}
	return lines
}

// materialize 将有序 part 物化为单个重组文件（原子写入）：
// 原始表头只写一次；各 part 与表头逐字节相等的首行被抑制。
// part0 的首行若不等于原始表头则保留（避免静默丢数据）。
// 返回实际写出的行数。
func materialize(ctx context.Context, stats []contract.PartStat, matches []bool, outPath, origHeader string, codec *textenc.Codec) (int64, error) {
	var written int64
	err := report.AtomicWrite(outPath, 0o644, func(w io.Writer) error {
		ew := codec.Writer(w)
		if origHeader != "" {
			if _, err := io.WriteString(ew, origHeader); err != nil {
				return err
			}
			written++
		}
		for i, s := range stats {
			if err := ctxErr(ctx); err != nil {
				return err
			}
			n, err := copyPart(ctx, s.Path, i, matches[i], origHeader, codec, ew)
			if err != nil {
				return err
			}
			written += n
		}
		if c, ok := ew.(io.Closer); ok {
			return c.Close()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// copyPart 将单个 part 写入重组流，按规则抑制首行；返回写出行数。
func copyPart(ctx context.Context, path string, index int, headerMatch bool, origHeader string, codec *textenc.Codec, out io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	br := bufio.NewReader(codec.Reader(bufio.NewReaderSize(f, 64*1024)))

	var written int64
	first, eof, err := readLine(br)
	if err != nil {
		return 0, err
	}
	if index == 0 {
		// 表头已置顶；仅当 part0 首行与其相等时抑制。
		if first != "" && first != origHeader {
			if _, err := io.WriteString(out, first); err != nil {
				return 0, err
			}
			written++
		}
	} else if !headerMatch && first != "" {
		if _, err := io.WriteString(out, first); err != nil {
			return 0, err
		}
		written++
	}
	for !eof {
		if err := ctxErr(ctx); err != nil {
			return 0, err
		}
		line, e, err := readLine(br)
		if err != nil {
			return 0, err
		}
		eof = e
		if line == "" {
			continue
		}
		if _, err := io.WriteString(out, line); err != nil {
			return 0, err
		}
		written++
	}
	return written, nil
}

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

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
