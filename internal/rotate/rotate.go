// Package rotate 实现按字节/行数上限的 part 旋转引擎。
//
// 引擎只做边界判定与计数，落盘经由注入的 contract.PartSink；
// part 为惰性物化：首次写入前不打开，空 part 永不落盘。
// 上限为硬上限：旋转判定先于写入，任何已产出 part 的字节数与
// 行数都不超过配置值，复制表头计入每个 part 的两项配额。
package rotate

import (
	"fmt"

	"csvsplit/internal/textenc"
	"csvsplit/pkg/contract"
)

// Limits: 单个 part 的硬上限（均须为正）。
type Limits struct {
	MaxBytes int64
	MaxLines int64
}

// Counters: 当前 part 的累计值对象。随 part 打开重置；
// 以值传递/返回，不经共享引用变更。
type Counters struct {
	Bytes int64
	Lines int64
}

// Writer: 旋转引擎。单写者、同步、无内部并发。
type Writer struct {
	lim   Limits
	sink  contract.PartSink
	codec *textenc.Codec

	// header: 需复制到每个 part 顶部的表头（含行终止符）；空串表示不复制。
	header      string
	headerBytes int64

	cur  Counters
	open bool
	next contract.PartIndex
}

// New 构建引擎并做 fail-fast 校验：
// 非正限额为配置错误；表头自身超出 MaxBytes 为不可满足配置。
func New(lim Limits, sink contract.PartSink, codec *textenc.Codec, header string) (*Writer, error) {
	if lim.MaxBytes <= 0 {
		return nil, fmt.Errorf("%w: max_bytes must be > 0", contract.ErrConfigInvalid)
	}
	if lim.MaxLines <= 0 {
		return nil, fmt.Errorf("%w: max_lines must be > 0", contract.ErrConfigInvalid)
	}
	w := &Writer{lim: lim, sink: sink, codec: codec, header: header}
	if header != "" {
		hb, err := w.codec.ByteLen(header)
		if err != nil {
			return nil, err
		}
		if hb > lim.MaxBytes {
			return nil, fmt.Errorf("%w: header is %d bytes, max_bytes is %d", contract.ErrHeaderTooLarge, hb, lim.MaxBytes)
		}
		w.headerBytes = hb
	}
	return w, nil
}

// Admit 准入一条记录（含行终止符）：
//  1. 记录连同复制表头必须能装入一个全新 part，否则致命；
//  2. 任一配额将被突破时先旋转（关旧开新、重写表头、重置计数）；
//  3. 写入并累计。
func (w *Writer) Admit(line string) error {
	nb, err := w.codec.ByteLen(line)
	if err != nil {
		return err
	}
	// 不可满足判定：即使在全新 part 中（表头已就位）也装不下。
	if w.headerBytes+nb > w.lim.MaxBytes {
		return fmt.Errorf("%w: record is %d bytes, part capacity is %d (max_bytes %d minus header %d)",
			contract.ErrRecordTooLarge, nb, w.lim.MaxBytes-w.headerBytes, w.lim.MaxBytes, w.headerBytes)
	}
	if w.header != "" && w.lim.MaxLines < 2 {
		return fmt.Errorf("%w: max_lines is %d but the replicated header leaves no line slot for data",
			contract.ErrRecordTooLarge, w.lim.MaxLines)
	}
	if !w.open {
		if err := w.openPart(); err != nil {
			return err
		}
	} else if w.cur.Bytes+nb > w.lim.MaxBytes || w.cur.Lines+1 > w.lim.MaxLines {
		if err := w.sink.ClosePart(); err != nil {
			return err
		}
		if err := w.openPart(); err != nil {
			return err
		}
	}
	if err := w.sink.WriteLine(line); err != nil {
		return err
	}
	w.cur.Bytes += nb
	w.cur.Lines++
	return nil
}

// EnsureOpen 在尚无打开 part 时打开 part 0（写入表头）。
// 供拆分引擎在检出表头后调用，使仅含表头的输入仍产出一个 part。
func (w *Writer) EnsureOpen() error {
	if w.open {
		return nil
	}
	return w.openPart()
}

// Finish 关闭当前 part（flush-then-close），返回实际产出的 part 数。
func (w *Writer) Finish() (int, error) {
	if !w.open {
		return 0, nil
	}
	w.open = false
	if err := w.sink.ClosePart(); err != nil {
		return int(w.next), err
	}
	return int(w.next), nil
}

// Current 返回当前 part 的计数快照。
func (w *Writer) Current() Counters { return w.cur }

func (w *Writer) openPart() error {
	if err := w.sink.OpenPart(w.next); err != nil {
		return err
	}
	w.next++
	w.open = true
	w.cur = Counters{}
	if w.header != "" {
		if err := w.sink.WriteLine(w.header); err != nil {
			return err
		}
		w.cur = Counters{Bytes: w.headerBytes, Lines: 1}
	}
	return nil
}
