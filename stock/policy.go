/*
policy.go - Product-level stock policies

PURPOSE:
  The engine is product-agnostic: products are SKU strings. What it
  needs to know about a product — its shelf life and how far ahead of
  physical stock it may be promised — comes from a PolicyResolver.

POLICIES:
  StockOnly:  holds may only be placed against physical records
  PlannedOK:  holds may also be placed against forecast records (default)
  DemandOK:   additionally, an unlinked demand hold is created when no
              stock of any kind can satisfy the request

SEE ALSO:
  - shelflife.go: How Shelflife is applied to records
  - holds.go: How Availability gates hold creation
*/
package stock

// AvailabilityPolicy governs what a hold may be placed against.
type AvailabilityPolicy string

const (
	StockOnly AvailabilityPolicy = "stock_only"
	PlannedOK AvailabilityPolicy = "planned_ok"
	DemandOK  AvailabilityPolicy = "demand_ok"
)

// ProductPolicy is everything the engine knows about a product.
type ProductPolicy struct {
	// Shelflife is the number of days the product remains usable after
	// production. nil = no expiration; 0 = same-day only.
	Shelflife *int

	Availability AvailabilityPolicy
}

// DefaultProductPolicy mirrors the engine defaults for products with
// no registered policy: no expiration, planned stock reservable.
func DefaultProductPolicy() ProductPolicy {
	return ProductPolicy{Shelflife: nil, Availability: PlannedOK}
}

// PolicyResolver supplies per-product policies. Implementations may be
// backed by the catalog; the engine only reads.
type PolicyResolver interface {
	PolicyFor(sku string) ProductPolicy
}

// =============================================================================
// STATIC RESOLVER
// =============================================================================

// StaticPolicies is a map-backed resolver for configuration and tests.
type StaticPolicies map[string]ProductPolicy

func (s StaticPolicies) PolicyFor(sku string) ProductPolicy {
	if p, ok := s[sku]; ok {
		if p.Availability == "" {
			p.Availability = PlannedOK
		}
		return p
	}
	return DefaultProductPolicy()
}
