package textenc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Codec: 命名文本编码的最小封装。
// 职责：
//  1. 计算一行文本在目标编码下的字节长度（旋转判定依据）；
//  2. 读取侧解码为 UTF-8，写入侧编码回目标编码。
//
// 编码名经 WHATWG 索引解析（htmlindex），别名（latin1/iso-8859-1 等）
// 归一到规范名。UTF-8 走零拷贝快路径。
type Codec struct {
	name string
	enc  encoding.Encoding
	e    *encoding.Encoder
	utf8 bool
}

// Resolve 解析编码名；空串采用默认 "utf-8"。
func Resolve(name string) (*Codec, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		s = "utf-8"
	}
	e, err := htmlindex.Get(s)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", s, err)
	}
	canonical, err := htmlindex.Name(e)
	if err != nil {
		canonical = strings.ToLower(s)
	}
	return &Codec{name: canonical, enc: e, e: e.NewEncoder(), utf8: canonical == "utf-8"}, nil
}

// Name 返回规范编码名。
func (c *Codec) Name() string { return c.name }

// ByteLen 返回 line（UTF-8 字符串）在目标编码下的字节长度。
func (c *Codec) ByteLen(line string) (int64, error) {
	if c.utf8 {
		return int64(len(line)), nil
	}
	b, err := c.e.Bytes([]byte(line))
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return int64(len(b)), nil
}

// Reader 将目标编码的字节流包装为 UTF-8 文本流。
func (c *Codec) Reader(r io.Reader) io.Reader {
	if c.utf8 {
		return r
	}
	return c.enc.NewDecoder().Reader(r)
}

// Writer 将 UTF-8 文本写入编码为目标编码的字节流。
// 返回值可能实现 io.Closer（transform 缓冲）；关闭责任在调用方，
// 须先于底层 flush/close 调用。
func (c *Codec) Writer(w io.Writer) io.Writer {
	if c.utf8 {
		return w
	}
	return c.enc.NewEncoder().Writer(w)
}
