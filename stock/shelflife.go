/*
shelflife.go - Shelf-life validity filtering

PURPOSE:
  Decides, given a product's shelf life and a requested target date,
  which Quants count as valid stock for that request. Pure functions,
  no store access.

RULES:
  shelflife = nil:
    - physical records: always valid
    - forecast records: valid iff their target date <= requested date
  shelflife = N (N >= 0):
    minProduction = requested date - N days
    - physical records: valid iff created on/after minProduction
    - forecast records: valid iff minProduction <= target date <= requested date
  N = 0 means same-day only.

EXAMPLES:
  - croissant (shelflife=0): only stock produced on the requested day
  - cake (shelflife=3): valid for 3 days after production
  - wine (shelflife=nil): never expires
*/
package stock

import "time"

// ValidForDate reports whether a single quant is valid stock for the
// requested target date under the given policy.
func ValidForDate(q *Quant, policy ProductPolicy, targetDate time.Time) bool {
	target := Day(targetDate)

	if policy.Shelflife == nil {
		if q.TargetDate == nil {
			return true
		}
		return !Day(*q.TargetDate).After(target)
	}

	minProduction := target.AddDate(0, 0, -*policy.Shelflife)

	if q.TargetDate == nil {
		return !Day(q.CreatedAt).Before(minProduction)
	}

	d := Day(*q.TargetDate)
	return !d.Before(minProduction) && !d.After(target)
}

// FilterValid returns the subset of quants valid for the target date.
// This is the bulk form of ValidForDate used by the availability paths.
func FilterValid(quants []Quant, policy ProductPolicy, targetDate time.Time) []Quant {
	valid := make([]Quant, 0, len(quants))
	for i := range quants {
		if ValidForDate(&quants[i], policy, targetDate) {
			valid = append(valid, quants[i])
		}
	}
	return valid
}
