package verify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"csvsplit/internal/textenc"
	"csvsplit/pkg/contract"
)

// discover 按 glob 枚举 part 文件并按内嵌序号升序排序（非字典序），
// 逐个度量实际字节数与行数；请求表头检查时逐字节比对首行。
// 返回有序度量列表与表头不匹配路径列表。
func discover(ctx context.Context, partsDir, pattern string, codec *textenc.Codec, origHeader string, checkHeaders bool) ([]contract.PartStat, []string, error) {
	matches, err := filepath.Glob(filepath.Join(partsDir, pattern))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad glob %q: %v", contract.ErrConfigInvalid, pattern, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("%w: pattern %q in %s", contract.ErrNoParts, pattern, partsDir)
	}
	sort.Slice(matches, func(i, j int) bool {
		return partIndexOf(matches[i]) < partIndexOf(matches[j])
	})

	stats := make([]contract.PartStat, 0, len(matches))
	var mismatches []string
	for _, p := range matches {
		if err := ctxErr(ctx); err != nil {
			return nil, nil, err
		}
		st, err := os.Stat(p)
		if err != nil {
			return nil, nil, err
		}
		lines, err := countLines(p, codec)
		if err != nil {
			return nil, nil, err
		}
		ps := contract.PartStat{Path: p, Bytes: st.Size(), Lines: lines}
		if checkHeaders {
			first, err := firstLine(p, codec)
			if err != nil {
				return nil, nil, err
			}
			match := first == origHeader
			ps.HeaderMatch = &match
			if !match {
				mismatches = append(mismatches, p)
			}
		}
		stats = append(stats, ps)
	}
	return stats, mismatches, nil
}

// partIndexOf 从文件名提取内嵌序号用于排序；
// 无法解析时回退为 0（与命名约定外的文件共存时保持稳定）。
func partIndexOf(path string) int {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	i := strings.LastIndex(stem, "part")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(stem[i+len("part"):])
	if err != nil {
		return 0
	}
	return n
}

// countLines 统计文件行数；EOF 处无终止符的末行按一行计。
func countLines(path string, codec *textenc.Codec) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	br := bufio.NewReader(codec.Reader(bufio.NewReaderSize(f, 64*1024)))
	var n int64
	for {
		s, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if s != "" {
					n++
				}
				return n, nil
			}
			return 0, err
		}
		n++
	}
}

// firstLine 读取文件首行（保留行终止符）。
func firstLine(path string, codec *textenc.Codec) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	br := bufio.NewReader(codec.Reader(f))
	s, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return s, nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
