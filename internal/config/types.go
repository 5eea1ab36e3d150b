package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Logging Logging `json:"logging"`
	// Encoding: 文本编码名（两个子命令共用）；空串采用 "utf-8"。
	Encoding string `json:"encoding"`

	Split  Split  `json:"split"`
	Verify Verify `json:"verify"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Split: split 子命令配置。
type Split struct {
	Input     string `json:"input"`
	OutputDir string `json:"output_dir"`
	// MaxBytes/MaxLines: 单 part 硬上限。-1 表示未设置（CLI/ENV 必须给出）。
	MaxBytes int64 `json:"max_bytes"`
	MaxLines int64 `json:"max_lines"`
	// IncludeHeader: nil 视为 true（默认复制表头）。
	IncludeHeader *bool `json:"include_header"`
	// HeaderMode: auto|on|off。
	HeaderMode string `json:"header_mode"`
	Delimiter  string `json:"delimiter"`
}

// Verify: verify 子命令配置。
type Verify struct {
	Original string `json:"original"`
	PartsDir string `json:"parts_dir"`
	// Pattern: part 的 glob 模式；空串由原始文件名推导。
	Pattern   string `json:"pattern"`
	MaxBytes  int64  `json:"max_bytes"`
	MaxLines  int64  `json:"max_lines"`
	OutputDir string `json:"output_dir"`
	// CheckHeaders: nil 视为 true（默认比对表头）。
	CheckHeaders    *bool `json:"check_headers"`
	Recombine       bool  `json:"recombine"`
	WriteRecombined bool  `json:"write_recombined"`
}

// IncludeHeaderOrDefault 解引用并套用默认值 true。
func (s Split) IncludeHeaderOrDefault() bool {
	return s.IncludeHeader == nil || *s.IncludeHeader
}

// CheckHeadersOrDefault 解引用并套用默认值 true。
func (v Verify) CheckHeadersOrDefault() bool {
	return v.CheckHeaders == nil || *v.CheckHeaders
}
