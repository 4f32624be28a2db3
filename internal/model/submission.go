package model

// ScanSubmission 注册文本规范化后的结果
type ScanSubmission struct {
	UserID   string      `json:"userId"`
	Email    string      `json:"email"`
	ScanData []ScanEntry `json:"scanData"`
}

// ScanEntry 一个厂商及其产品，Products 为 产品名 -> 产品ID
type ScanEntry struct {
	Vendor   string            `json:"vendor"`
	Products map[string]string `json:"products"`

	// 产品首次出现的顺序，Products 本身无序
	order []string
}

// ProductNames 按首次出现顺序返回产品名
func (e ScanEntry) ProductNames() []string {
	if len(e.order) == len(e.Products) {
		return append([]string(nil), e.order...)
	}
	names := make([]string, 0, len(e.Products))
	for name := range e.Products {
		names = append(names, name)
	}
	return names
}

// AddProduct 添加或覆盖产品，保留首次出现的位置
func (e *ScanEntry) AddProduct(name, id string) {
	if e.Products == nil {
		e.Products = make(map[string]string)
	}
	if _, ok := e.Products[name]; !ok {
		e.order = append(e.order, name)
	}
	e.Products[name] = id
}

// RegistrationPayload 存储层接收的规范载荷
type RegistrationPayload struct {
	UserID   string           `json:"userId"`
	Email    string           `json:"email"`
	ScanData []VendorProducts `json:"scanData"`
}

// VendorProducts 一个厂商下的产品列表
type VendorProducts struct {
	Vendor        string   `json:"vendor"`
	VendorWebsite *string  `json:"vendorWebsite,omitempty"`
	Products      []string `json:"products"`
}
