package diag

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"csvsplit/pkg/contract"
)

// 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

// 当前文件名与时间戳文件同时存在
func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	for i := 0; i < 5; i++ {
		if err := w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent := false
	hasRotated := false
	for _, e := range ents {
		if strings.HasSuffix(e.Name(), "csvsplit-current.txt") {
			hasCurrent = true
		}
		if strings.HasPrefix(e.Name(), "csvsplit-") && strings.HasSuffix(e.Name(), ".txt") && !strings.Contains(e.Name(), "current") {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

// 指标 no-op 钩子
func TestMetricsNoop(t *testing.T) {
	IncOp("comp", "stage", "success")
	IncError("comp", "code")
	ObserveDuration("comp", "stage", 1)
}

// 错误分类
func TestClassify(t *testing.T) {
	if CodeCancel != Classify(context.Canceled) {
		t.Fatalf("取消分类错误")
	}
	if CodeConfig != Classify(contract.ErrConfigInvalid) {
		t.Fatalf("配置分类错误")
	}
	if CodeConfig != Classify(contract.ErrNotFound) || CodeConfig != Classify(contract.ErrNoParts) {
		t.Fatalf("输入缺失应归为配置分类")
	}
	if CodeData != Classify(contract.ErrRecordTooLarge) || CodeData != Classify(contract.ErrHeaderTooLarge) {
		t.Fatalf("数据分类错误")
	}
	if CodeInvariant != Classify(contract.ErrPathInvalid) {
		t.Fatalf("不变量分类错误")
	}
	err := &fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}
	if CodeIO != Classify(err) {
		t.Fatalf("IO 分类错误")
	}
	if CodeUnknown != Classify(errors.New("other")) {
		t.Fatalf("未知分类错误")
	}
}

// 包装后的哨兵仍可分类
func TestClassifyWrapped(t *testing.T) {
	wrapped := errWrap{inner: contract.ErrRecordTooLarge}
	if CodeData != Classify(wrapped) {
		t.Fatalf("包装哨兵分类错误")
	}
}

type errWrap struct{ inner error }

func (e errWrap) Error() string { return "wrap: " + e.inner.Error() }
func (e errWrap) Unwrap() error { return e.inner }

// Logger 基本流程
func TestLogger(t *testing.T) {
	l := NewLogger("corr", "debug")
	l.sink = nil // 避免文件操作
	timer := l.Start("comp", "msg")
	timer.Finish("ok", 1)
	timer = l.StartWith("comp", "msg", "data.csv", "0")
	timer.Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	l.ErrorWith("comp", "code", "msg", nil, "data.csv", "1")
	l.Warn("comp", "msg", "data.csv", map[string]string{"k": "v"})
	l.InfoFinish("comp", "msg", time.Now(), 1)
	l.DebugStart("comp", "msg", "data.csv", "0", nil)
}

// NowUTC
func TestNowUTC(t *testing.T) {
	if NowUTC() == "" {
		t.Fatalf("应返回时间字符串")
	}
}

// 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	// 非 TTY：strings.Builder 不是 *os.File
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart("split", "dir/data.csv")
	term.PartOpened(0, "out/data-part0.csv")
	term.Progress(1, 100) // 非 TTY：不输出进度
	term.RunFinish(true, 2, 41300*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	if !strings.Contains(out, "[split] data.csv") {
		t.Fatalf("missing run line: %q", out)
	}
	if !strings.Contains(out, "[part] 打开 data-part0.csv") {
		t.Fatalf("missing part line: %q", out)
	}
	if !strings.Contains(out, "[ok] split 完成 | part 2 | 总用时 41.3s") {
		t.Fatalf("missing ok line: %q", out)
	}
}

// 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true // 强制 TTY
	term.RunStart("split", "/a/b/c/verylongbasename.csv")

	term.Progress(1, 10)
	first := sb.String()
	if !strings.Contains(first, "\r[") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	// 立即第二次：应被节流（<100ms）
	term.Progress(2, 20)
	second := sb.String()
	if second != first {
		t.Fatalf("second progress should be throttled; got changed output")
	}
	time.Sleep(120 * time.Millisecond)
	term.Progress(2, 20)
	third := sb.String()
	if len(third) <= len(second) {
		t.Fatalf("third progress should append output")
	}
	term.RunFinish(false, 2, 2200*time.Millisecond)
	final := sb.String()
	if !strings.Contains(final, "[fail]") {
		t.Fatalf("finish should include fail line: %q", final)
	}
}

// 禁用态全程 no-op
func TestTerminalDisabled(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, false)
	term.RunStart("verify", "a.csv")
	term.PartOpened(0, "p")
	term.Progress(1, 1)
	term.RunFinish(true, 1, time.Second)
	if sb.Len() != 0 {
		t.Fatalf("disabled terminal wrote: %q", sb.String())
	}
}

// 全局终端设置/读取
func TestSetGetTerminal(t *testing.T) {
	term := NewTerminal(nil, false)
	SetTerminal(term)
	if GetTerminal() != term {
		t.Fatalf("global terminal mismatch")
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("global terminal not cleared")
	}
}
