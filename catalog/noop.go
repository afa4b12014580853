package catalog

// Noop is a stub Validator for development and testing: every SKU is
// valid, every lookup returns minimal defaults, search finds nothing.
//
// Do NOT use in production — it will accept any identifier, including
// nonexistent or inactive ones.
type Noop struct{}

func (Noop) Validate(sku string) ValidationResult {
	return ValidationResult{
		Valid:       true,
		SKU:         sku,
		ProductName: sku,
		IsActive:    true,
	}
}

func (Noop) Lookup(sku string) *Info {
	return &Info{
		SKU:      sku,
		Name:     sku,
		IsActive: true,
		Unit:     "un",
	}
}

func (Noop) Search(query string, limit int, includeInactive bool) []Info {
	return nil
}
