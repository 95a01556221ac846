package assemble

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// generator writes JSON tokens incrementally. It tracks just enough
// structure to place separators and indentation; structural correctness is
// the Consumer's job.
//
// Write errors are sticky: after the first failure every call is a no-op
// and err reports the failure.
type generator struct {
	w         *bufio.Writer
	pretty    bool
	first     []bool // per open container: nothing written yet
	afterName bool
	err       error
}

func newGenerator(w io.Writer, pretty bool) *generator {
	return &generator{w: bufio.NewWriter(w), pretty: pretty}
}

func (g *generator) write(s string) {
	if g.err != nil {
		return
	}
	_, g.err = g.w.WriteString(s)
}

func (g *generator) newline() {
	g.write("\n")
	g.write(strings.Repeat("  ", len(g.first)))
}

// beforeValue emits the separator preceding a value or field name.
func (g *generator) beforeValue() {
	if g.afterName {
		g.afterName = false
		return
	}
	n := len(g.first)
	if n == 0 {
		return
	}
	if !g.first[n-1] {
		g.write(",")
	}
	g.first[n-1] = false
	if g.pretty {
		g.newline()
	}
}

func (g *generator) start(array bool) {
	g.beforeValue()
	if array {
		g.write("[")
	} else {
		g.write("{")
	}
	g.first = append(g.first, true)
}

func (g *generator) end(array bool) {
	n := len(g.first)
	empty := g.first[n-1]
	g.first = g.first[:n-1]
	if g.pretty && !empty {
		g.newline()
	}
	if array {
		g.write("]")
	} else {
		g.write("}")
	}
}

func (g *generator) fieldName(name string) {
	g.beforeValue()
	g.quote(name)
	if g.pretty {
		g.write(": ")
	} else {
		g.write(":")
	}
	g.afterName = true
}

func (g *generator) raw(token string) {
	g.beforeValue()
	g.write(token)
}

func (g *generator) str(s string) {
	g.beforeValue()
	g.quote(s)
}

func (g *generator) flush() error {
	if g.err != nil {
		return g.err
	}
	g.err = g.w.Flush()
	return g.err
}

const hex = "0123456789abcdef"

// quote writes s as a JSON string. U+2028 and U+2029 are escaped so the
// output is also safe inside a JSONP envelope.
func (g *generator) quote(s string) {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c >= 0x20 && c != '"' && c != '\\' {
				i++
				continue
			}
			b.WriteString(s[start:i])
			switch c {
			case '"', '\\':
				b.WriteByte('\\')
				b.WriteByte(c)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			case '\b':
				b.WriteString(`\b`)
			case '\f':
				b.WriteString(`\f`)
			default:
				b.WriteString(`\u00`)
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0xF])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '\u2028' || r == '\u2029' {
			b.WriteString(s[start:i])
			b.WriteString(`\u202`)
			b.WriteByte(hex[r&0xF])
			i += size
			start = i
			continue
		}
		i += size
	}
	b.WriteString(s[start:])
	b.WriteByte('"')
	g.write(b.String())
}
