// Package datefmt expands listing date templates such as "%d?-%mo-%y %h:%mi"
// against a modification time. Expansion never consults the process locale.
package datefmt

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLayout is the template used when a mount does not configure one.
const DefaultLayout = "%d?-%mo-%y %h:%mi"

const isoLayout = "2006-01-02T15:04:05.000Z"

var months = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// fields holds the decomposed UTC timestamp.
type fields struct {
	year, month, day, hour, minute, second, millis string
	monthIndex                                      int
	weekday                                         string
}

func decompose(t time.Time) fields {
	utc := t.UTC()
	iso := utc.Format(isoLayout)
	if len(iso) != len(isoLayout) {
		// years outside 0000-9999 widen the year field
		iso = fmt.Sprintf("%04d", utc.Year()%10000) + iso[len(iso)-len(isoLayout)+4:]
	}
	f := fields{
		year:    iso[0:4],
		month:   iso[5:7],
		day:     iso[8:10],
		hour:    iso[11:13],
		minute:  iso[14:16],
		second:  iso[17:19],
		millis:  iso[20:23],
		weekday: utc.Weekday().String()[:3],
	}
	f.monthIndex = int(f.month[0]-'0')*10 + int(f.month[1]-'0') - 1
	return f
}

type token struct {
	name    string
	extract func(fields) string
}

// tokens is ordered longest first so a single scan picks "%mo" over "%m".
var tokens = []token{
	{"%wd", func(f fields) string { return f.weekday }},
	{"%mo", func(f fields) string { return months[f.monthIndex] }},
	{"%mn", func(f fields) string { return f.month }},
	{"%mi", func(f fields) string { return f.minute }},
	{"%ms", func(f fields) string {
		if f.millis == "000" {
			return ""
		}
		return f.millis
	}},
	{"%d", func(f fields) string { return f.day }},
	{"%y", func(f fields) string { return f.year }},
	{"%h", func(f fields) string { return f.hour }},
	{"%s", func(f fields) string { return f.second }},
}

// Format expands layout against t. A token followed by "?" emits the next
// character only when the token expanded to a non-empty string.
func Format(t time.Time, layout string) string {
	f := decompose(t)

	var b strings.Builder
	b.Grow(len(layout) + 8)

	for i := 0; i < len(layout); {
		if layout[i] != '%' {
			b.WriteByte(layout[i])
			i++
			continue
		}

		tok, ok := match(layout[i:])
		if !ok {
			b.WriteByte('%')
			i++
			continue
		}

		out := tok.extract(f)
		i += len(tok.name)
		b.WriteString(out)

		if i < len(layout) && layout[i] == '?' {
			i++
			if out == "" && i < len(layout) {
				i += runeLen(layout[i:])
			}
		}
	}
	return b.String()
}

func match(s string) (token, bool) {
	for _, tok := range tokens {
		if strings.HasPrefix(s, tok.name) {
			return tok, true
		}
	}
	return token{}, false
}

func runeLen(s string) int {
	for i := range s {
		if i > 0 {
			return i
		}
	}
	return len(s)
}
