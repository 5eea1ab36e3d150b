package split

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"csvsplit/internal/diag"
	"csvsplit/internal/textenc"
	"csvsplit/pkg/contract"
)

// fileSink 将旋转引擎的写入落盘为 <stem>-part<N><ext> 文件。
// part 由引擎惰性打开，因此磁盘上永不出现空文件。
type fileSink struct {
	dir    string
	naming contract.Naming
	codec  *textenc.Codec

	f     *os.File
	bw    *bufio.Writer
	ew    io.Writer
	paths []string
}

var _ contract.PartSink = (*fileSink)(nil)

func newFileSink(dir string, naming contract.Naming, codec *textenc.Codec) *fileSink {
	return &fileSink{dir: dir, naming: naming, codec: codec}
}

func (s *fileSink) OpenPart(i contract.PartIndex) error {
	p := filepath.Join(s.dir, s.naming.PartName(i))
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.bw = bufio.NewWriterSize(f, 64*1024)
	s.ew = s.codec.Writer(s.bw)
	s.paths = append(s.paths, p)
	if t := diag.GetTerminal(); t != nil {
		t.PartOpened(int(i), p)
	}
	return nil
}

func (s *fileSink) WriteLine(line string) error {
	_, err := io.WriteString(s.ew, line)
	return err
}

// ClosePart 保证 flush-then-close；未打开状态为 no-op。
// 编码包装器（transform 缓冲）先于底层 flush 关闭。
func (s *fileSink) ClosePart() error {
	if s.f == nil {
		return nil
	}
	var first error
	if c, ok := s.ew.(io.Closer); ok {
		if err := c.Close(); err != nil {
			first = err
		}
	}
	if err := s.bw.Flush(); err != nil && first == nil {
		first = err
	}
	if err := s.f.Close(); err != nil && first == nil {
		first = err
	}
	s.f, s.bw, s.ew = nil, nil, nil
	return first
}
