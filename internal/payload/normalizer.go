// Package payload 将前端提交的类JS对象字面量文本转换为规范的扫描载荷。
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"CyberAlerter/internal/common"
	"CyberAlerter/internal/model"
)

// record 单条注册记录
type record struct {
	UserID      string `json:"userId"`
	ProductID   idValue `json:"productId"`
	VendorName  string  `json:"vendorName"`
	ProductName string  `json:"productName"`
}

// idValue 同时接受字符串和数字形式的ID
type idValue string

func (v *idValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = idValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("productId 必须是字符串或数字: %s", b)
	}
	*v = idValue(n.String())
	return nil
}

// Normalize 解析零条或多条拼接的注册记录，并按厂商分组
func Normalize(raw string) (*model.ScanSubmission, error) {
	sub := &model.ScanSubmission{ScanData: []model.ScanEntry{}}
	if strings.TrimSpace(raw) == "" {
		return sub, nil
	}

	js, err := toJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}

	records, err := decodeRecords(js)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}
	if len(records) == 0 {
		return sub, nil
	}

	sub.UserID = records[0].UserID
	if sub.UserID == "" {
		return nil, fmt.Errorf("%w: 第一条记录缺少 userId", common.ErrMalformedPayload)
	}

	index := make(map[string]int)
	for i, rec := range records {
		if rec.VendorName == "" || rec.ProductName == "" {
			return nil, fmt.Errorf("%w: 第 %d 条记录缺少 vendorName 或 productName", common.ErrMalformedPayload, i+1)
		}
		pos, ok := index[rec.VendorName]
		if !ok {
			pos = len(sub.ScanData)
			index[rec.VendorName] = pos
			sub.ScanData = append(sub.ScanData, model.ScanEntry{Vendor: rec.VendorName})
		}
		sub.ScanData[pos].AddProduct(rec.ProductName, string(rec.ProductID))
	}

	return sub, nil
}

// ToRegistration 转换为存储层的规范载荷，email 由调用方提供
func ToRegistration(sub *model.ScanSubmission, email string) model.RegistrationPayload {
	payload := model.RegistrationPayload{
		UserID:   sub.UserID,
		Email:    email,
		ScanData: make([]model.VendorProducts, 0, len(sub.ScanData)),
	}
	for _, entry := range sub.ScanData {
		payload.ScanData = append(payload.ScanData, model.VendorProducts{
			Vendor:   entry.Vendor,
			Products: entry.ProductNames(),
		})
	}
	return payload
}

func decodeRecords(js string) ([]record, error) {
	trimmed := strings.TrimSpace(js)
	if strings.HasPrefix(trimmed, "[") {
		var records []record
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var records []record
	dec := json.NewDecoder(strings.NewReader(trimmed))
	for {
		var rec record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// toJSON 给未加引号的键加双引号，单引号字符串改为双引号，
// 删除尾随逗号以及顶层对象之间的逗号
func toJSON(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw) + len(raw)/4)

	depth := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			end, err := scanDoubleQuoted(raw, i)
			if err != nil {
				return "", err
			}
			b.WriteString(raw[i : end+1])
			i = end

		case c == '\'':
			content, end, err := scanSingleQuoted(raw, i)
			if err != nil {
				return "", err
			}
			b.WriteByte('"')
			b.WriteString(content)
			b.WriteByte('"')
			i = end

		case isIdentStart(c):
			j := i + 1
			for j < len(raw) && isIdentPart(raw[j]) {
				j++
			}
			ident := raw[i:j]
			if next := skipSpace(raw, j); next < len(raw) && raw[next] == ':' {
				b.WriteByte('"')
				b.WriteString(ident)
				b.WriteByte('"')
			} else {
				b.WriteString(ident)
			}
			i = j - 1

		case c == '{' || c == '[':
			depth++
			b.WriteByte(c)

		case c == '}' || c == ']':
			depth--
			if depth < 0 {
				return "", fmt.Errorf("位置 %d 处括号不匹配", i)
			}
			b.WriteByte(c)

		case c == ',':
			next := skipSpace(raw, i+1)
			if depth == 0 {
				continue
			}
			if next < len(raw) && (raw[next] == '}' || raw[next] == ']') {
				continue
			}
			b.WriteByte(c)

		default:
			b.WriteByte(c)
		}
	}

	if depth != 0 {
		return "", errors.New("括号未闭合")
	}
	return b.String(), nil
}

func scanDoubleQuoted(s string, start int) (int, error) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}
	return 0, fmt.Errorf("位置 %d 处字符串未闭合", start)
}

func scanSingleQuoted(s string, start int) (string, int, error) {
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("位置 %d 处转义不完整", i)
			}
			if s[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(s[i+1])
			}
			i++
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\'':
			return b.String(), i, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("位置 %d 处字符串未闭合", start)
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
