package model

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

type PageRequest struct {
	Number int
	Size   int
}

// Normalize clamps the request to a valid 0-based page.
func (p PageRequest) Normalize() PageRequest {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

type Page struct {
	Content       []*EnvoyToken `json:"content"`
	Number        int           `json:"number"`
	Size          int           `json:"size"`
	TotalElements int64         `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
	First         bool          `json:"first"`
	Last          bool          `json:"last"`
}

// NewPage builds a page from one slice of results and the total count.
func NewPage(content []*EnvoyToken, req PageRequest, total int64) *Page {
	if content == nil {
		content = []*EnvoyToken{}
	}

	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}

	return &Page{
		Content:       content,
		Number:        req.Number,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
		First:         req.Number == 0,
		Last:          req.Number >= pages-1,
	}
}
