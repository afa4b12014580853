/*
Package catalog defines the SKU validation capability the stock engine
consumes.

The engine defines the interface; a catalog system implements it.
Product master data, pricing, and SKU lifecycle live entirely on the
other side of this boundary — the engine only asks "is this identifier
real" and, occasionally, "tell me about it".
*/
package catalog

// ValidationResult is the outcome of validating one SKU.
type ValidationResult struct {
	Valid       bool
	SKU         string
	Message     string
	ProductName string
	IsActive    bool
	ErrorCode   string // "not_found", "inactive", ...
}

// Info is basic SKU information.
type Info struct {
	SKU         string
	Name        string
	Description string
	IsActive    bool
	Unit        string // "un", "kg", "lt", ...
	Category    string
	Metadata    map[string]string
}

// Validator is the SKU validation capability.
type Validator interface {
	// Validate reports whether the SKU exists and is active.
	Validate(sku string) ValidationResult

	// Lookup returns SKU information, or nil if not found.
	Lookup(sku string) *Info

	// Search finds SKUs by name or code, for autocomplete.
	Search(query string, limit int, includeInactive bool) []Info
}
