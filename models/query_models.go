package models

// AlertFilter narrows an alert listing. Zero values mean "any".
type AlertFilter struct {
	Day         string
	MerchantID  string
	RuleCode    RuleCode
	SeverityMin int
	Limit       int
}

// Match reports whether a passes the filter, ignoring Limit.
func (f AlertFilter) Match(a Alert) bool {
	if f.Day != "" && a.Day != f.Day {
		return false
	}
	if f.MerchantID != "" && a.MerchantID != f.MerchantID {
		return false
	}
	if f.RuleCode != "" && a.RuleCode != f.RuleCode {
		return false
	}
	return a.Severity >= f.SeverityMin
}
