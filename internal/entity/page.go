package entity

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageParams 列表分页参数，page 从 1 开始
type PageParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Normalize 填充默认值；limit<=0 时不设上限
func (p *PageParams) Normalize(limit int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if limit > 0 && p.PageSize > limit {
		p.PageSize = limit
	}
}

func (p PageParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

type Meta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func NewMeta(p PageParams, total int64) *Meta {
	m := &Meta{Page: p.Page, PageSize: p.PageSize, Total: total}
	if p.PageSize > 0 {
		m.TotalPages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return m
}
