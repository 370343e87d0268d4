package datefmt

import (
	"strings"
	"time"

	appLog "icaltool/internal/log"
)

// InputFormats are the accepted input date patterns, in the order they are
// tried.
var InputFormats = []string{
	"yyyy-MM-dd'T'HH:mm:ssZZZZZ",
	"yyyy-MM-dd'T'HH:mm:ssZ",
	"yyyy-MM-dd'T'HH:mm:ss",
	"yyyy-MM-dd'T'HH:mm",
	"yyyy-MM-dd",
}

var inputPatterns = func() []*Pattern {
	out := make([]*Pattern, len(InputFormats))
	for i, f := range InputFormats {
		out[i] = MustCompile(f)
	}
	return out
}()

// Parser parses user-supplied dates. The zero value uses the local zone and
// the wall clock.
type Parser struct {
	// Location interprets inputs without a zone offset. Nil means time.Local.
	Location *time.Location
	// Now supplies the fallback instant. Nil means time.Now.
	Now func() time.Time
}

// Parse returns the first successful match among InputFormats. Input that
// matches none of them yields the current instant, which is logged.
func (p Parser) Parse(text string) time.Time {
	if t, ok := p.TryParse(text); ok {
		return t
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	appLog.Warn("unrecognized date, using current time",
		"date", text,
		"formats", strings.Join(InputFormats, ", "),
	)
	return now()
}

// TryParse is Parse without the fallback.
func (p Parser) TryParse(text string) (time.Time, bool) {
	for _, pat := range inputPatterns {
		if t, err := pat.Parse(text, p.Location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseInput parses text with the default Parser.
func ParseInput(text string) time.Time {
	return Parser{}.Parse(text)
}
