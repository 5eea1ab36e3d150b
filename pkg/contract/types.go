package contract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PartIndex: part 的序号（0..n-1，连续、无空洞）。
type PartIndex int

// Naming: part 文件命名约定 <stem>-part<N><ext>。
// 由原始文件名一次推导，运行期不变。
type Naming struct {
	Stem string
	Ext  string
}

// NamingFor 从原始文件名（不含目录）推导命名约定。
// 无扩展名时 Ext 为空串。
func NamingFor(filename string) Naming {
	ext := filepath.Ext(filename)
	return Naming{Stem: strings.TrimSuffix(filename, ext), Ext: ext}
}

// PartName 返回第 i 个 part 的文件名。
func (n Naming) PartName(i PartIndex) string {
	return fmt.Sprintf("%s-part%d%s", n.Stem, i, n.Ext)
}

// Glob 返回匹配全部 part 的默认 glob 模式。
func (n Naming) Glob() string {
	return n.Stem + "-part*" + n.Ext
}

// RecombinedName 返回物化重组文件的文件名。
func (n Naming) RecombinedName() string {
	return n.Stem + "-recombined" + n.Ext
}

// PartStat: 单个 part 的度量快照（验证期使用）。
// 仅持有副本值，不引用存活句柄。
type PartStat struct {
	Path  string
	Bytes int64
	Lines int64
	// HeaderMatch: 首行是否与原始表头逐字节一致；nil 表示未检查。
	HeaderMatch *bool
}
