package model

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page is a 1-based pagination window.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into valid bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

func (p Page) Limit() int {
	return p.Normalize().Size
}
