package config

// DefaultTemplateConfig 返回一个"可运行"的默认配置模板：
// - 限额给出常见样例值（10 MiB / 10 万行），用户按需调整；
// - verify 默认复用 split 的输出目录作为 part 目录；
// - 所有键显式出现，便于 -init-config 产出的文件自我说明。
func DefaultTemplateConfig() Config {
	d := Defaults()
	tru := true
	cfg := d
	cfg.Split = Split{
		Input:         "data.csv",
		OutputDir:     "parts",
		MaxBytes:      10 * 1024 * 1024,
		MaxLines:      100000,
		IncludeHeader: &tru,
		HeaderMode:    d.Split.HeaderMode,
		Delimiter:     d.Split.Delimiter,
	}
	cfg.Verify = Verify{
		Original:     "data.csv",
		PartsDir:     "parts",
		Pattern:      "",
		MaxBytes:     10 * 1024 * 1024,
		MaxLines:     100000,
		OutputDir:    d.Verify.OutputDir,
		CheckHeaders: &tru,
	}
	return cfg
}
