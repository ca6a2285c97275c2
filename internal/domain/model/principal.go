package model

// Principal is the authenticated caller decoded from a bearer token.
type Principal struct {
	UserID string
	Rights []string
}

func (p *Principal) Has(right string) bool {
	if p == nil || right == "" {
		return false
	}
	for _, r := range p.Rights {
		if r == right {
			return true
		}
	}
	return false
}
