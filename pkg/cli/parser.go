package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"CyberAlerter/internal/model"
)

// ErrHelp 用户请求帮助
var ErrHelp = errors.New("help requested")

type Parser struct {
	Options model.CLIOptions
	out     io.Writer
}

func NewParser() *Parser {
	return &Parser{out: os.Stdout}
}

func (p *Parser) Parse(args []string) error {
	var (
		help  bool
		users string
	)

	fs := flag.NewFlagSet("cyberalerter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&p.Options.EnvFile, "env", ".env", ".env 配置文件")
	fs.StringVar(&p.Options.DatabasePath, "db", "", "数据库路径 (覆盖 DATABASE_PATH)")
	fs.StringVar(&p.Options.RegisterFile, "register", "", "注册文本文件，- 表示标准输入")
	fs.StringVar(&p.Options.Email, "email", "", "注册用户的邮箱")
	fs.StringVar(&users, "scan", "", "扫描的用户ID，逗号分隔")
	fs.StringVar(&p.Options.ReportUser, "report", "", "导出指定用户的漏洞报告")
	fs.StringVar(&p.Options.CVEID, "cve", "", "按CVE编号查询NVD")
	fs.BoolVar(&p.Options.Publish, "publish", false, "将报告投递到消息队列")
	fs.BoolVar(&p.Options.Serve, "serve", false, "启动HTTP服务")
	fs.BoolVar(&p.Options.Reset, "reset", false, "清空数据库")
	fs.IntVar(&p.Options.History, "history", 0, "显示最近N次扫描记录")
	fs.BoolVar(&p.Options.NVDFallback, "nvd-fallback", false, "没有专用适配器的厂商改用NVD查询")
	fs.StringVar(&p.Options.OutputFile, "output", "", "输出文件")
	fs.StringVar(&p.Options.OutputFormat, "format", "text", "输出格式 (text, json, csv)")
	fs.BoolVar(&p.Options.Verbose, "verbose", false, "显示详细信息")
	fs.BoolVar(&help, "help", false, "显示帮助")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if help {
		p.printHelp()
		return ErrHelp
	}

	for _, id := range strings.Split(users, ",") {
		if id = strings.TrimSpace(id); id != "" {
			p.Options.ScanUsers = append(p.Options.ScanUsers, id)
		}
	}

	switch strings.ToLower(p.Options.OutputFormat) {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("不支持的输出格式: %s", p.Options.OutputFormat)
	}

	if p.Options.RegisterFile != "" && p.Options.Email == "" {
		return fmt.Errorf("注册时必须指定 -email")
	}
	if p.Options.Publish && p.Options.ReportUser == "" {
		return fmt.Errorf("-publish 需要同时指定 -report")
	}

	if p.Options.RegisterFile == "" && len(p.Options.ScanUsers) == 0 && p.Options.ReportUser == "" &&
		p.Options.CVEID == "" && !p.Options.Serve && !p.Options.Reset && p.Options.History == 0 {
		return fmt.Errorf("必须指定至少一个操作")
	}

	return nil
}

func (p *Parser) printHelp() {
	fmt.Fprintln(p.out, "CyberAlerter - 产品漏洞监控工具")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "使用方法: cyberalerter [选项]")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "选项:")
	fmt.Fprintln(p.out, "  -env string        .env 配置文件 (默认: .env)")
	fmt.Fprintln(p.out, "  -db string         数据库路径")
	fmt.Fprintln(p.out, "  -register string   注册文本文件，- 表示标准输入")
	fmt.Fprintln(p.out, "  -email string      注册用户的邮箱")
	fmt.Fprintln(p.out, "  -scan string       扫描的用户ID，逗号分隔")
	fmt.Fprintln(p.out, "  -report string     导出指定用户的漏洞报告")
	fmt.Fprintln(p.out, "  -cve string        按CVE编号查询NVD")
	fmt.Fprintln(p.out, "  -publish           将报告投递到消息队列")
	fmt.Fprintln(p.out, "  -serve             启动HTTP服务")
	fmt.Fprintln(p.out, "  -reset             清空数据库")
	fmt.Fprintln(p.out, "  -history int       显示最近N次扫描记录")
	fmt.Fprintln(p.out, "  -nvd-fallback      没有专用适配器的厂商改用NVD查询")
	fmt.Fprintln(p.out, "  -output string     输出文件")
	fmt.Fprintln(p.out, "  -format string     输出格式 (text, json, csv) (默认: text)")
	fmt.Fprintln(p.out, "  -verbose           显示详细信息")
	fmt.Fprintln(p.out, "  -help              显示帮助")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "示例:")
	fmt.Fprintln(p.out, "  cyberalerter -register products.txt -email admin@example.com")
	fmt.Fprintln(p.out, "  cyberalerter -scan u1,u2 -format json -output cycle.json")
	fmt.Fprintln(p.out, "  cyberalerter -report u1 -publish")
}
