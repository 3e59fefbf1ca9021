package password

import "unicode"

// Policy is the server-side password strength policy.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// Validate returns the list of violated rules as message keys.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	n := len([]rune(s))
	if n < p.MinLength {
		reasons = append(reasons, "password_too_short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, "password_too_long")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "password_missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "password_missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "password_missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "password_missing_symbol")
	}
	return len(reasons) == 0, reasons
}
