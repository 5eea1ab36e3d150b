package split

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"csvsplit/internal/header"
	"csvsplit/pkg/contract"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("写入输入失败: %v", err)
	}
	return p
}

func readPart(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("读取 %s 失败: %v", name, err)
	}
	return string(b)
}

func TestRunLineLimitRotation(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\n1,a\n2,b\n3,c\n4,d\n")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 3,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.Parts != 2 {
		t.Fatalf("期望 2 个 part, 实际 %d", res.Parts)
	}
	if !res.HasHeader || res.Header != "id,name\n" {
		t.Fatalf("表头判定错误: has=%v hdr=%q", res.HasHeader, res.Header)
	}
	if res.InputLines != 5 {
		t.Fatalf("期望 5 输入行, 实际 %d", res.InputLines)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "id,name\n1,a\n2,b\n" {
		t.Fatalf("part0 内容错误: %q", got)
	}
	if got := readPart(t, out, "data-part1.csv"); got != "id,name\n3,c\n4,d\n" {
		t.Fatalf("part1 内容错误: %q", got)
	}
	if len(res.PartPaths) != 2 || filepath.Base(res.PartPaths[0]) != "data-part0.csv" {
		t.Fatalf("PartPaths 错误: %v", res.PartPaths)
	}
}

func TestRunByteLimitRotation(t *testing.T) {
	// 表头 3 字节, 每行 4 字节。max_bytes=11 恰容纳表头 + 2 行。
	in := writeInput(t, "d.csv", "h,\na,1\nb,2\nc,3\n")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 11, MaxLines: 100,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.Parts != 2 {
		t.Fatalf("期望 2 个 part, 实际 %d", res.Parts)
	}
	if got := readPart(t, out, "d-part0.csv"); got != "h,\na,1\nb,2\n" {
		t.Fatalf("part0 内容错误: %q", got)
	}
	if got := readPart(t, out, "d-part1.csv"); got != "h,\nc,3\n" {
		t.Fatalf("part1 内容错误: %q", got)
	}
}

func TestRunEmptyInput(t *testing.T) {
	in := writeInput(t, "data.csv", "")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 100, MaxLines: 10,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.Parts != 0 || res.InputLines != 0 {
		t.Fatalf("空输入应产出 0 part 0 行, 实际 %d/%d", res.Parts, res.InputLines)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("空输入不应落盘任何文件, 实际 %d 项", len(entries))
	}
}

func TestRunHeaderOnlyInput(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\n")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 100, MaxLines: 10,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.Parts != 1 {
		t.Fatalf("仅表头输入应产出 part0, 实际 %d", res.Parts)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "id,name\n" {
		t.Fatalf("part0 内容错误: %q", got)
	}
}

func TestRunNoHeaderInput(t *testing.T) {
	// 首字段为纯数字, 启发式判为数据行。
	in := writeInput(t, "data.csv", "1,a\n2,b\n3,c\n")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 2,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.HasHeader || res.Header != "" {
		t.Fatalf("不应判出表头: has=%v hdr=%q", res.HasHeader, res.Header)
	}
	if res.Parts != 2 {
		t.Fatalf("期望 2 个 part, 实际 %d", res.Parts)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "1,a\n2,b\n" {
		t.Fatalf("part0 不应带表头: %q", got)
	}
	if got := readPart(t, out, "data-part1.csv"); got != "3,c\n" {
		t.Fatalf("part1 内容错误: %q", got)
	}
}

func TestRunIncludeHeaderFalse(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\n1,a\n2,b\n")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 10,
		IncludeHeader: false,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	// 表头仍被判出并计入输入行数, 但整行弃置。
	if !res.HasHeader {
		t.Fatalf("表头应被判出")
	}
	if res.Parts != 1 {
		t.Fatalf("期望 1 个 part, 实际 %d", res.Parts)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "1,a\n2,b\n" {
		t.Fatalf("表头不应进入 part: %q", got)
	}
}

func TestRunHeaderModeForced(t *testing.T) {
	in := writeInput(t, "data.csv", "1,a\n2,b\n")
	out := filepath.Join(t.TempDir(), "parts")

	// on: 首行强制作为表头, 哪怕启发式判为数据。
	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 10,
		IncludeHeader: true, HeaderMode: header.ModeOn,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if !res.HasHeader || res.Header != "1,a\n" {
		t.Fatalf("on 模式应强制表头: %+v", res)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "1,a\n2,b\n" {
		t.Fatalf("part0 内容错误: %q", got)
	}

	// off: 明显的表头行也按数据处理。
	in2 := writeInput(t, "data.csv", "id,name\n1,a\n")
	out2 := filepath.Join(t.TempDir(), "parts")
	res2, err := Run(context.Background(), Config{
		Input: in2, OutputDir: out2,
		MaxBytes: 10000, MaxLines: 10,
		IncludeHeader: true, HeaderMode: header.ModeOff,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res2.HasHeader {
		t.Fatalf("off 模式不应判出表头")
	}
}

func TestRunOversizedRecord(t *testing.T) {
	in := writeInput(t, "data.csv", "h,\nab\nthis-record-is-too-long\n")
	out := filepath.Join(t.TempDir(), "parts")

	_, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10, MaxLines: 100,
		IncludeHeader: true,
	}, nil)
	if !errors.Is(err, contract.ErrRecordTooLarge) {
		t.Fatalf("期望 ErrRecordTooLarge, 实际 %v", err)
	}
	// 中止前已打开的 part 保留在磁盘上。
	if got := readPart(t, out, "data-part0.csv"); got != "h,\nab\n" {
		t.Fatalf("part0 应保留已写内容: %q", got)
	}
}

func TestRunIdempotent(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\n1,a\n2,b\n3,c\n4,d\n")
	out := filepath.Join(t.TempDir(), "parts")
	cfg := Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 3,
		IncludeHeader: true,
	}

	res1, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("第一次拆分失败: %v", err)
	}
	first := make(map[string]string, len(res1.PartPaths))
	for _, p := range res1.PartPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("读取 %s: %v", p, err)
		}
		first[p] = string(b)
	}

	res2, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("第二次拆分失败: %v", err)
	}
	if res2.Parts != res1.Parts {
		t.Fatalf("重复拆分 part 数不一致: %d vs %d", res2.Parts, res1.Parts)
	}
	for _, p := range res2.PartPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("读取 %s: %v", p, err)
		}
		if string(b) != first[p] {
			t.Fatalf("重复拆分 %s 内容不一致", p)
		}
	}
}

func TestRunCRLFPreserved(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\r\n1,a\r\n2,b\r\n")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 2,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.Parts != 2 {
		t.Fatalf("期望 2 个 part, 实际 %d", res.Parts)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "id,name\r\n1,a\r\n" {
		t.Fatalf("CRLF 应原样保留: %q", got)
	}
}

func TestRunUnterminatedTail(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\n1,a\n2,b")
	out := filepath.Join(t.TempDir(), "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 10,
		IncludeHeader: true,
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.InputLines != 3 {
		t.Fatalf("无终止符末行应按一行计, 实际 %d", res.InputLines)
	}
	if got := readPart(t, out, "data-part0.csv"); got != "id,name\n1,a\n2,b" {
		t.Fatalf("末行不应补终止符: %q", got)
	}
}

func TestRunLatin1Encoding(t *testing.T) {
	raw := []byte("name\ncaf\xe9\n") // latin1 编码的 café
	dir := t.TempDir()
	in := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(in, raw, 0o644); err != nil {
		t.Fatalf("写入输入失败: %v", err)
	}
	out := filepath.Join(dir, "parts")

	res, err := Run(context.Background(), Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 10,
		IncludeHeader: true, Encoding: "latin1",
	}, nil)
	if err != nil {
		t.Fatalf("拆分失败: %v", err)
	}
	if res.Parts != 1 {
		t.Fatalf("期望 1 个 part, 实际 %d", res.Parts)
	}
	b, err := os.ReadFile(filepath.Join(out, "data-part0.csv"))
	if err != nil {
		t.Fatalf("读取 part0: %v", err)
	}
	if string(b) != string(raw) {
		t.Fatalf("latin1 往返应字节一致: %q vs %q", b, raw)
	}
}

func TestRunBadInputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(in, []byte("h\n"), 0o644); err != nil {
		t.Fatalf("写入输入失败: %v", err)
	}

	_, err := Run(context.Background(), Config{
		Input: filepath.Join(dir, "nope.csv"), OutputDir: dir,
		MaxBytes: 1, MaxLines: 1,
	}, nil)
	if !errors.Is(err, contract.ErrNotFound) {
		t.Fatalf("缺失输入: 期望 ErrNotFound, 实际 %v", err)
	}

	_, err = Run(context.Background(), Config{
		Input: in, OutputDir: dir,
		MaxBytes: -1, MaxLines: 1,
	}, nil)
	if !errors.Is(err, contract.ErrConfigInvalid) {
		t.Fatalf("非法限额: 期望 ErrConfigInvalid, 实际 %v", err)
	}

	_, err = Run(context.Background(), Config{
		Input: in, OutputDir: dir,
		MaxBytes: 1, MaxLines: 0,
	}, nil)
	if !errors.Is(err, contract.ErrConfigInvalid) {
		t.Fatalf("非法限额: 期望 ErrConfigInvalid, 实际 %v", err)
	}

	_, err = Run(context.Background(), Config{
		Input: in, OutputDir: dir,
		MaxBytes: 100, MaxLines: 10, Encoding: "no-such-encoding",
	}, nil)
	if !errors.Is(err, contract.ErrConfigInvalid) {
		t.Fatalf("非法编码: 期望 ErrConfigInvalid, 实际 %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	in := writeInput(t, "data.csv", "id,name\n1,a\n2,b\n3,c\n")
	out := filepath.Join(t.TempDir(), "parts")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{
		Input: in, OutputDir: out,
		MaxBytes: 10000, MaxLines: 2,
		IncludeHeader: true,
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled, 实际 %v", err)
	}
}
