package querysql

import "unicode/utf8"

// IncrementKey returns the smallest string greater than every string that
// has s as a prefix, by incrementing the last character. The empty string
// is returned unchanged.
//
// Under byte-wise comparison, path >= s AND path < IncrementKey(s) selects
// exactly the paths starting with s.
func IncrementKey(s string) string {
	for s != "" {
		r, size := utf8.DecodeLastRuneInString(s)
		prefix := s[:len(s)-size]
		if r == utf8.RuneError && size == 1 {
			if c := s[len(s)-1]; c < 0xFF {
				return prefix + string([]byte{c + 1})
			}
			s = prefix
			continue
		}
		next := r + 1
		if next >= 0xD800 && next <= 0xDFFF {
			next = 0xE000
		}
		if next > utf8.MaxRune {
			s = prefix
			continue
		}
		return prefix + string(next)
	}
	return s
}
