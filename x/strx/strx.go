package strx

// Coalesce returns s if non-empty, otherwise d.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// BoolDigit renders b as "1" or "0".
func BoolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
