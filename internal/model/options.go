package model

// CLIOptions 命令行选项
type CLIOptions struct {
	EnvFile      string
	DatabasePath string
	RegisterFile string
	Email        string
	ScanUsers    []string
	ReportUser   string
	CVEID        string
	Publish      bool
	Serve        bool
	Reset        bool
	History      int
	NVDFallback  bool
	OutputFile   string
	OutputFormat string // json, text, csv
	Verbose      bool
}
