package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"CyberAlerter/internal/model"
	"CyberAlerter/internal/watchlist"
)

type OutputFormatter struct {
	format string
	out    io.Writer
}

func NewOutputFormatter(format string) *OutputFormatter {
	return &OutputFormatter{format: strings.ToLower(format), out: os.Stdout}
}

func (of *OutputFormatter) write(output, outputFile string) error {
	if outputFile != "" {
		return os.WriteFile(outputFile, []byte(output), 0644)
	}
	_, err := fmt.Fprint(of.out, output)
	return err
}

// PrintCycle 输出扫描周期结果：成功、失败、跳过的厂商及原因
func (of *OutputFormatter) PrintCycle(report *model.CycleReport, outputFile string) error {
	var output string
	switch of.format {
	case "json":
		output = formatJSON(report)
	case "csv":
		output = of.cycleCSV(report)
	default:
		output = of.cycleText(report)
	}
	return of.write(output, outputFile)
}

func (of *OutputFormatter) cycleText(report *model.CycleReport) string {
	var builder strings.Builder

	builder.WriteString("\n📡 CyberAlerter 扫描周期\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("运行ID: %s\n", report.RunID))
	builder.WriteString(fmt.Sprintf("用户: %s\n", strings.Join(report.UserIDs, ", ")))
	builder.WriteString(fmt.Sprintf("耗时: %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))

	if len(report.Vendors) == 0 {
		builder.WriteString("❌ 这些用户没有注册任何产品\n")
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("📊 厂商统计: 成功(%d) | 失败(%d) | 跳过(%d)\n\n",
		report.Count(model.VendorSucceeded), report.Count(model.VendorFailed), report.Count(model.VendorSkipped)))

	w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "厂商\t状态\t产品数\t公告\t保存\t失败\t原因")
	for _, v := range report.Vendors {
		reason := v.Error
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			v.Vendor, statusText(v.Status), len(v.Products), v.Advisories, v.Stored, v.Failed, reason)
	}
	w.Flush()

	builder.WriteString("\n" + strings.Repeat("═", 60) + "\n")
	builder.WriteString("✨ 扫描完成！\n")
	return builder.String()
}

func statusText(s model.VendorStatus) string {
	switch s {
	case model.VendorSucceeded:
		return "🟢 成功"
	case model.VendorFailed:
		return "🔴 失败"
	case model.VendorSkipped:
		return "⚪ 跳过"
	default:
		return string(s)
	}
}

func (of *OutputFormatter) cycleCSV(report *model.CycleReport) string {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)

	writer.Write([]string{"run_id", "vendor", "status", "products", "advisories", "stored", "failed", "error"})
	for _, v := range report.Vendors {
		writer.Write([]string{
			report.RunID,
			v.Vendor,
			string(v.Status),
			strings.Join(v.Products, ";"),
			strconv.Itoa(v.Advisories),
			strconv.Itoa(v.Stored),
			strconv.Itoa(v.Failed),
			v.Error,
		})
	}

	writer.Flush()
	return builder.String()
}

// PrintReports 输出报告载荷
func (of *OutputFormatter) PrintReports(payloads []model.ReportPayload, outputFile string) error {
	var output string
	switch of.format {
	case "json":
		output = formatJSON(payloads)
	case "csv":
		output = of.reportsCSV(payloads)
	default:
		output = of.reportsText(payloads)
	}
	return of.write(output, outputFile)
}

func (of *OutputFormatter) reportsText(payloads []model.ReportPayload) string {
	var builder strings.Builder
	if len(payloads) == 0 {
		builder.WriteString("\n✅ 好消息！未发现已知CVE漏洞\n")
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("\n📧 收件人: %s\n", payloads[0].UserEmail))
	for _, p := range payloads {
		d := p.ScanDetails
		builder.WriteString(fmt.Sprintf("\n🔸 %s (版本: %s) - %d 个CVE\n", d.ProductName, d.ProductVersion, len(d.Results)))
		builder.WriteString(strings.Repeat("─", 40) + "\n")
		for _, r := range d.Results {
			builder.WriteString(fmt.Sprintf("%s %s (%s)\n", severityIcon(r.BaseSeverity), r.CVEID, r.BaseSeverity))

			// 简短描述（限制长度）
			desc := []rune(r.VulnerabilityDescription)
			if len(desc) > 100 {
				desc = append(desc[:100], []rune("...")...)
			}
			builder.WriteString(fmt.Sprintf("   📝 %s\n", string(desc)))
			if r.OEMURL != nil {
				builder.WriteString(fmt.Sprintf("   🔗 %s\n", *r.OEMURL))
			}
		}
	}
	return builder.String()
}

func severityIcon(severity string) string {
	switch strings.ToUpper(severity) {
	case "CRITICAL":
		return "🔥"
	case "HIGH":
		return "🔴"
	case "MEDIUM":
		return "🟠"
	case "LOW":
		return "🟢"
	default:
		return "⚠️"
	}
}

func (of *OutputFormatter) reportsCSV(payloads []model.ReportPayload) string {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)

	writer.Write([]string{"email", "product", "version", "cve_id", "severity", "published", "last_modified", "oem_url"})
	for _, p := range payloads {
		for _, r := range p.ScanDetails.Results {
			url := ""
			if r.OEMURL != nil {
				url = *r.OEMURL
			}
			writer.Write([]string{
				p.UserEmail,
				p.ScanDetails.ProductName,
				p.ScanDetails.ProductVersion,
				r.CVEID,
				r.BaseSeverity,
				r.PublishedDate,
				r.LastModified,
				url,
			})
		}
	}

	writer.Flush()
	return builder.String()
}

// PrintHistory 输出最近的扫描记录
func (of *OutputFormatter) PrintHistory(runs []watchlist.ScanRun, outputFile string) error {
	if of.format == "json" {
		return of.write(formatJSON(runs), outputFile)
	}

	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "运行ID\t开始时间\t用户\t成功\t失败\t跳过")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), strings.Join(r.UserIDs, ","), r.Succeeded, r.Failed, r.Skipped)
	}
	w.Flush()
	return of.write(builder.String(), outputFile)
}

// PrintAdvisory 输出单条公告
func (of *OutputFormatter) PrintAdvisory(rec *model.AdvisoryRecord, outputFile string) error {
	if of.format == "json" {
		return of.write(formatJSON(rec), outputFile)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s %s (%s)\n", severityIcon(rec.Severity), rec.CVEID, rec.Severity))
	builder.WriteString(fmt.Sprintf("   发布: %s  更新: %s\n", rec.Published, rec.LastUpdated))
	builder.WriteString(fmt.Sprintf("   📝 %s\n", rec.Description))
	builder.WriteString(fmt.Sprintf("   🔗 %s\n", rec.Link))
	return of.write(builder.String(), outputFile)
}

// PrintRegistration 输出注册结果
func (of *OutputFormatter) PrintRegistration(userID string, stats watchlist.ProductStats, outputFile string) error {
	if of.format == "json" {
		return of.write(formatJSON(map[string]interface{}{"userId": userID, "products": stats}), outputFile)
	}
	output := fmt.Sprintf("用户 %s 注册完成: 新增 %d, 更新 %d, 未变 %d, 失败 %d\n",
		userID, stats.Inserted, stats.Updated, stats.Unchanged, stats.Failed)
	return of.write(output, outputFile)
}

func formatJSON(v interface{}) string {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "%v"}`, err)
	}
	return string(jsonBytes) + "\n"
}
