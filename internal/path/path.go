// Package path converts between external document paths ("/a/b/3/c") and
// the storage paths used as primary keys ("/a/b/[3/c/").
//
// Array positions are rendered with a self-delimiting, lexicographically
// sortable encoding: the decimal index is preceded by its length, the
// length by its own length, and so on until a single digit remains; one
// ArrayMarker is written per level. Byte-wise order of encoded tokens equals
// numeric order for every uint64.
//
//	0      -> [0
//	9      -> [9
//	10     -> [[210
//	12345  -> [[512345
//	10^10  -> [[[21110000000000
package path

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/jsondb/internal/record"
)

// ArrayMarker prefixes every array index token. It is a reserved key
// character, so tokens never collide with field names.
const ArrayMarker = '['

// MaxKeyLength is the maximum number of characters in a field name.
const MaxKeyLength = 768

// Separator delimits path segments.
const Separator = "/"

// Root is the storage path of the document root.
const Root = "/"

// EncodeArrayIndex returns the sortable token for array position i.
func EncodeArrayIndex(i uint64) string {
	seq := strconv.FormatUint(i, 10)
	levels := []string{seq}
	for len(seq) > 1 {
		seq = strconv.Itoa(len(seq))
		levels = append(levels, seq)
	}

	var b strings.Builder
	b.Grow(len(levels) * 3)
	for range levels {
		b.WriteByte(ArrayMarker)
	}
	for i := len(levels) - 1; i >= 0; i-- {
		b.WriteString(levels[i])
	}
	return b.String()
}

// DecodeArrayIndex is the exact inverse of EncodeArrayIndex. Tokens that
// EncodeArrayIndex would not produce fail with a MALFORMED_INDEX error.
func DecodeArrayIndex(token string) (uint64, error) {
	markers := 0
	for markers < len(token) && token[markers] == ArrayMarker {
		markers++
	}
	if markers == 0 {
		return 0, record.NewMalformedIndexError(token, "missing array marker")
	}

	rest := token[markers:]
	width := uint64(1)
	var value uint64
	for level := 0; level < markers; level++ {
		if uint64(len(rest)) < width {
			return 0, record.NewMalformedIndexError(token, "length prefix exceeds token")
		}
		v, err := strconv.ParseUint(rest[:width], 10, 64)
		if err != nil {
			return 0, record.NewMalformedIndexError(token, "invalid digits")
		}
		rest = rest[width:]
		value = v
		width = v
	}
	if rest != "" {
		return 0, record.NewMalformedIndexError(token, "trailing characters")
	}
	if EncodeArrayIndex(value) != token {
		return 0, record.NewMalformedIndexError(token, "non-canonical encoding")
	}
	return value, nil
}

// IsArrayToken reports whether a storage path segment is an array index.
func IsArrayToken(segment string) bool {
	return segment != "" && segment[0] == ArrayMarker
}

// ValidateKey checks a field name and returns its NFC-normalised form.
// Keys must be non-empty, at most MaxKeyLength characters, and must not
// contain . % $ # [ ] / or ASCII control characters (0-31, 127).
func ValidateKey(key string) (string, error) {
	key = norm.NFC.String(key)
	if key == "" {
		return "", record.NewInvalidKeyError(key, "key cannot be empty")
	}
	for _, r := range key {
		switch {
		case r == '.', r == '%', r == '$', r == '#', r == '[', r == ']', r == '/', r == 127:
			return "", record.NewInvalidKeyError(key, "key cannot contain ., %, $, #, [, ], /, or ASCII control characters 0-31 or 127")
		case r < 32:
			return "", record.NewInvalidKeyError(key, "key cannot contain ., %, $, #, [, ], /, or ASCII control characters 0-31 or 127")
		}
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return "", record.NewInvalidKeyError(key, "key cannot be longer than 768 characters")
	}
	return key, nil
}

// ToStoragePath converts an external path to its storage form. Empty
// segments are dropped, purely numeric segments become array index tokens,
// and every other segment must pass ValidateKey. The result always starts
// and ends with a slash; the empty path maps to Root.
func ToStoragePath(external string) (string, error) {
	var b strings.Builder
	b.WriteString(Separator)
	for _, seg := range strings.Split(external, Separator) {
		if seg == "" {
			continue
		}
		converted, err := convertSegment(seg)
		if err != nil {
			return "", err
		}
		b.WriteString(converted)
		b.WriteString(Separator)
	}
	return b.String(), nil
}

// ConvertKey converts a single key the way ToStoragePath converts a path
// segment. Used for range bounds.
func ConvertKey(key string) (string, error) {
	return convertSegment(key)
}

func convertSegment(seg string) (string, error) {
	if isDigits(seg) {
		idx, err := strconv.ParseUint(seg, 10, 64)
		if err != nil {
			return "", record.NewInvalidKeyError(seg, "array index out of range")
		}
		return EncodeArrayIndex(idx), nil
	}
	return ValidateKey(seg)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Segments splits a storage path into its segments.
// Segments("/a/[0/b/") is ["a", "[0", "b"]; Segments("/") is empty.
func Segments(storage string) []string {
	trimmed := strings.Trim(storage, Separator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, Separator)
}

// Ancestors returns the storage paths of every proper ancestor of storage,
// root first. Ancestors("/a/b/c/") is ["/", "/a/", "/a/b/"].
func Ancestors(storage string) []string {
	segs := Segments(storage)
	if len(segs) == 0 {
		return nil
	}
	out := make([]string, 0, len(segs))
	current := Root
	out = append(out, current)
	for _, seg := range segs[:len(segs)-1] {
		current += seg + Separator
		out = append(out, current)
	}
	return out
}

// Child appends one already-converted segment to a storage path.
func Child(storage, segment string) string {
	return storage + segment + Separator
}

// Logical returns the caller-facing form of a path used in change events:
// a single leading slash and no trailing slash. The root is "/".
func Logical(p string) string {
	p = strings.TrimSuffix(p, Separator)
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	return p
}

// Join joins external path fragments with a single separator.
func Join(base string, elems ...string) string {
	out := strings.TrimSuffix(base, Separator)
	for _, e := range elems {
		out += Separator + strings.Trim(e, Separator)
	}
	return out
}

// External converts a storage path back to the caller-facing form, with
// array tokens rendered as decimal indexes. External("/data/[[210/x/") is
// "/data/10/x"; the root is "/".
func External(storage string) string {
	segs := Segments(storage)
	if len(segs) == 0 {
		return Root
	}
	for i, seg := range segs {
		if !IsArrayToken(seg) {
			continue
		}
		if idx, err := DecodeArrayIndex(seg); err == nil {
			segs[i] = strconv.FormatUint(idx, 10)
		}
	}
	return Separator + strings.Join(segs, Separator)
}
