package cli

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"CyberAlerter/internal/model"
)

func TestParseScan(t *testing.T) {
	p := NewParser()
	if err := p.Parse([]string{"-scan", "u1, u2,,u3", "-format", "json"}); err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	if got := strings.Join(p.Options.ScanUsers, "|"); got != "u1|u2|u3" {
		t.Errorf("ScanUsers = %s", got)
	}
	if p.Options.EnvFile != ".env" {
		t.Errorf("EnvFile = %s", p.Options.EnvFile)
	}
}

func TestParseErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"-register", "products.txt"},
		{"-publish"},
		{"-scan", "u1", "-format", "xml"},
		{"-unknown"},
	}
	for _, args := range tests {
		if err := NewParser().Parse(args); err == nil {
			t.Errorf("Parse(%v) 应返回错误", args)
		}
	}
}

func TestParseHelp(t *testing.T) {
	var buf bytes.Buffer
	p := NewParser()
	p.out = &buf
	if err := p.Parse([]string{"-help"}); !errors.Is(err, ErrHelp) {
		t.Fatalf("期望 ErrHelp, 实际 %v", err)
	}
	if !strings.Contains(buf.String(), "-register") {
		t.Errorf("帮助信息缺少 -register")
	}
}

func sampleCycle() *model.CycleReport {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &model.CycleReport{
		RunID:      "run-1",
		UserIDs:    []string{"u1"},
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Vendors: []model.VendorOutcome{
			{Vendor: "NVIDIA", Products: []string{"GeForce", "Jetson"}, Status: model.VendorSucceeded, Advisories: 3, Stored: 3},
			{Vendor: "Acme", Products: []string{"Widget"}, Status: model.VendorSkipped, Error: "unsupported vendor: Acme"},
		},
	}
}

func TestPrintCycleText(t *testing.T) {
	var buf bytes.Buffer
	of := NewOutputFormatter("text")
	of.out = &buf

	if err := of.PrintCycle(sampleCycle(), ""); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run-1", "成功(1)", "跳过(1)", "unsupported vendor: Acme"} {
		if !strings.Contains(out, want) {
			t.Errorf("输出缺少 %q:\n%s", want, out)
		}
	}
}

func TestPrintCycleCSV(t *testing.T) {
	var buf bytes.Buffer
	of := NewOutputFormatter("CSV")
	of.out = &buf

	if err := of.PrintCycle(sampleCycle(), ""); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("期望3行, 实际 %d", len(records))
	}
	if records[1][3] != "GeForce;Jetson" {
		t.Errorf("products = %s", records[1][3])
	}
}

func TestPrintReportsText(t *testing.T) {
	var buf bytes.Buffer
	of := NewOutputFormatter("text")
	of.out = &buf

	url := "https://example.com/a"
	err := of.PrintReports([]model.ReportPayload{{
		UserEmail: "a@example.com",
		ScanDetails: model.ScanDetails{
			ProductName:    "GeForce 551.23",
			ProductVersion: "551.23",
			Results: []model.ReportResult{{
				CVEID:                    "CVE-2024-0126",
				BaseSeverity:             "HIGH",
				VulnerabilityDescription: strings.Repeat("长", 150),
				OEMURL:                   &url,
			}},
		},
	}}, "")
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "a@example.com") || !strings.Contains(out, "🔴 CVE-2024-0126") {
		t.Errorf("输出不完整:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("长", 101)) {
		t.Errorf("描述未截断")
	}
}
