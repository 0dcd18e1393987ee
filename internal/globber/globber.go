// Package globber implements the wildcard dialect every store agrees on:
// '*' matches any run of bytes (separators included), '?' matches exactly
// one byte, and '\' escapes the byte after it. This is the subset a Redis
// SCAN MATCH evaluates the same way, so local and remote pattern deletes
// stay consistent. Matching is over the whole string, not path segments.
package globber

// Match reports whether s matches pattern.
func Match(pattern, s string) bool {
	var (
		p, i  int
		starP = -1 // position of the last '*' seen
		starI int  // position in s when that '*' was seen
	)
	for i < len(s) {
		if p < len(pattern) {
			switch pattern[p] {
			case '?':
				p++
				i++
				continue
			case '*':
				starP, starI = p, i
				p++
				continue
			case '\\':
				lit := byte('\\')
				next := p + 1
				if p+1 < len(pattern) {
					lit = pattern[p+1]
					next = p + 2
				}
				if s[i] == lit {
					p = next
					i++
					continue
				}
			default:
				if pattern[p] == s[i] {
					p++
					i++
					continue
				}
			}
		}
		if starP >= 0 {
			// widen what the last '*' swallowed and retry
			starI++
			i = starI
			p = starP + 1
			continue
		}
		return false
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
