// Package common 定义跨包共享的错误类型。
// 调用方通过 errors.Is 判断错误类别，具体信息由 fmt.Errorf("%w") 包装。
package common

import "errors"

var (
	// 提交边界错误，直接返回给调用方
	ErrMalformedPayload = errors.New("malformed payload")
	ErrValidation       = errors.New("validation error")

	// 扫描周期内的错误，只降级为警告
	ErrAdapterFetch = errors.New("adapter fetch error")
	ErrParse        = errors.New("parse error")
	ErrPersistence  = errors.New("persistence error")

	ErrUnsupportedVendor = errors.New("unsupported vendor")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrNotFound          = errors.New("not found")
)
