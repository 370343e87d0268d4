// Package datefmt handles the Unicode (LDML) date patterns used on the
// command line, such as yyyy-MM-dd'T'HH:mm:ssZZZZZ, and the fallback parsing
// of user-supplied dates.
package datefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrNotParseable = errors.New("pattern cannot be used for parsing")

// segment is one compiled piece of a pattern: either literal text or a field.
// Fields carry a Go layout fragment for parsing and, when the layout cannot
// express the field exactly, a formatting function.
type segment struct {
	literal string
	layout  string
	format  func(time.Time) string
}

// Pattern is a compiled LDML date pattern.
type Pattern struct {
	src  string
	segs []segment
}

// MustCompile is like Compile but panics on error. It is meant for patterns
// known at compile time.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Compile parses an LDML pattern. Quoted text is literal, '' is a single
// quote, and every unquoted ASCII letter must be a supported field letter.
func Compile(pattern string) (*Pattern, error) {
	p := &Pattern{src: pattern}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			p.segs = append(p.segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '\'':
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				lit.WriteByte('\'')
				i += 2
				continue
			}
			end := i + 1
			for {
				j := strings.IndexByte(pattern[end:], '\'')
				if j < 0 {
					return nil, fmt.Errorf("date pattern %q: unterminated quote", pattern)
				}
				lit.WriteString(pattern[end : end+j])
				end += j + 1
				if end < len(pattern) && pattern[end] == '\'' {
					lit.WriteByte('\'')
					end++
					continue
				}
				break
			}
			i = end

		case isLetter(c):
			n := 1
			for i+n < len(pattern) && pattern[i+n] == c {
				n++
			}
			seg, err := field(c, n)
			if err != nil {
				return nil, fmt.Errorf("date pattern %q: %w", pattern, err)
			}
			flush()
			p.segs = append(p.segs, seg)
			i += n

		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return p, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func field(c byte, n int) (segment, error) {
	switch c {
	case 'G':
		return segment{format: func(t time.Time) string {
			if t.Year() > 0 {
				return "AD"
			}
			return "BC"
		}}, nil
	case 'y':
		if n == 2 {
			return segment{layout: "06"}, nil
		}
		return segment{layout: "2006"}, nil
	case 'M', 'L':
		switch n {
		case 1:
			return segment{layout: "1"}, nil
		case 2:
			return segment{layout: "01"}, nil
		case 3:
			return segment{layout: "Jan"}, nil
		default:
			return segment{layout: "January"}, nil
		}
	case 'd':
		if n == 1 {
			return segment{layout: "2"}, nil
		}
		return segment{layout: "02"}, nil
	case 'D':
		return segment{format: func(t time.Time) string { return pad(t.YearDay(), n) }}, nil
	case 'E':
		switch {
		case n <= 3:
			return segment{layout: "Mon"}, nil
		case n == 4:
			return segment{layout: "Monday"}, nil
		default:
			return segment{format: func(t time.Time) string { return t.Weekday().String()[:1] }}, nil
		}
	case 'a':
		return segment{layout: "PM"}, nil
	case 'H':
		if n == 1 {
			return segment{layout: "15", format: func(t time.Time) string { return strconv.Itoa(t.Hour()) }}, nil
		}
		return segment{layout: "15"}, nil
	case 'h':
		if n == 1 {
			return segment{layout: "3"}, nil
		}
		return segment{layout: "03"}, nil
	case 'k':
		return segment{format: func(t time.Time) string {
			h := t.Hour()
			if h == 0 {
				h = 24
			}
			return pad(h, n)
		}}, nil
	case 'K':
		return segment{format: func(t time.Time) string { return pad(t.Hour()%12, n) }}, nil
	case 'm':
		if n == 1 {
			return segment{layout: "4"}, nil
		}
		return segment{layout: "04"}, nil
	case 's':
		if n == 1 {
			return segment{layout: "5"}, nil
		}
		return segment{layout: "05"}, nil
	case 'S':
		return segment{format: func(t time.Time) string {
			frac := fmt.Sprintf("%09d", t.Nanosecond())
			if n <= len(frac) {
				return frac[:n]
			}
			return frac + strings.Repeat("0", n-len(frac))
		}}, nil
	case 'Z':
		switch {
		case n <= 3:
			return segment{layout: "-0700"}, nil
		case n == 4:
			return segment{format: func(t time.Time) string {
				if _, off := t.Zone(); off == 0 {
					return "GMT"
				}
				return "GMT" + t.Format("-07:00")
			}}, nil
		default:
			return segment{layout: "Z07:00"}, nil
		}
	case 'X':
		return segment{layout: isoZone("Z", n)}, nil
	case 'x':
		return segment{layout: isoZone("-", n)}, nil
	case 'z':
		return segment{layout: "MST"}, nil
	}
	return segment{}, fmt.Errorf("unsupported field letter %q", c)
}

func isoZone(prefix string, n int) string {
	switch n {
	case 1:
		return prefix + "07"
	case 2:
		return prefix + "0700"
	case 3:
		return prefix + "07:00"
	case 4:
		return prefix + "070000"
	default:
		return prefix + "07:00:00"
	}
}

func pad(v, width int) string {
	s := strconv.Itoa(v)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.src
}

// Format renders t according to the pattern.
func (p *Pattern) Format(t time.Time) string {
	var b strings.Builder
	for _, s := range p.segs {
		switch {
		case s.format != nil:
			b.WriteString(s.format(t))
		case s.layout != "":
			b.WriteString(t.Format(s.layout))
		default:
			b.WriteString(s.literal)
		}
	}
	return b.String()
}

// Go layouts have no escaping, so literal text containing any of these bytes
// could be mistaken for a layout element.
const layoutSensitive = "0123456789JMPpZ_"

// Layout returns the equivalent Go layout, or ErrNotParseable when a field
// or literal has no faithful layout representation.
func (p *Pattern) Layout() (string, error) {
	var b strings.Builder
	for _, s := range p.segs {
		switch {
		case s.layout != "":
			b.WriteString(s.layout)
		case s.format != nil:
			return "", fmt.Errorf("%w: %q", ErrNotParseable, p.src)
		default:
			if strings.ContainsAny(s.literal, layoutSensitive) {
				return "", fmt.Errorf("%w: %q", ErrNotParseable, p.src)
			}
			b.WriteString(s.literal)
		}
	}
	return b.String(), nil
}

// Parse reads text written in the pattern. Text without a zone is
// interpreted in loc.
func (p *Pattern) Parse(text string, loc *time.Location) (time.Time, error) {
	layout, err := p.Layout()
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	// time.Parse accepts a fraction after a seconds field even when the
	// layout has none; the pattern has no fraction field, so refuse it.
	if strings.Count(text, ".")+strings.Count(text, ",") > strings.Count(layout, ".")+strings.Count(layout, ",") {
		return time.Time{}, fmt.Errorf("date %q: fractional seconds not in pattern %q", text, p.src)
	}
	return time.ParseInLocation(layout, text, loc)
}
