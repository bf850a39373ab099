package value

import (
	"strings"
	"time"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// Date is a calendar/time value tagged with its xsd datatype.
type Date struct {
	T        time.Time
	Datatype string
	HasTZ    bool
}

func (Date) Kind() Kind    { return KindDate }
func (Date) IsNull() bool  { return false }
func (Date) IsMulti() bool { return false }
func (Date) value()        {}

// String returns the xsd lexical form for the datatype.
func (d Date) String() string {
	var layout string
	switch d.Datatype {
	case rdf.XSDDateTime:
		layout = "2006-01-02T15:04:05"
		if d.T.Nanosecond() != 0 {
			layout += ".999999999"
		}
	case rdf.XSDTime:
		layout = "15:04:05"
		if d.T.Nanosecond() != 0 {
			layout += ".999999999"
		}
	case rdf.XSDGYearMonth:
		layout = "2006-01"
	case rdf.XSDGYear:
		layout = "2006"
	default:
		layout = "2006-01-02"
	}
	if d.HasTZ {
		layout += "Z07:00"
	}
	return d.T.Format(layout)
}

// Format renders the date with a Java-style or Go layout.
func (d Date) Format(format string) string {
	return d.T.Format(GoLayout(format))
}

// datatypeAliases accepts short and prefixed datatype names.
var datatypeAliases = map[string]string{
	"date":           rdf.XSDDate,
	"xsd:date":       rdf.XSDDate,
	"datetime":       rdf.XSDDateTime,
	"dateTime":       rdf.XSDDateTime,
	"xsd:dateTime":   rdf.XSDDateTime,
	"time":           rdf.XSDTime,
	"xsd:time":       rdf.XSDTime,
	"gYearMonth":     rdf.XSDGYearMonth,
	"xsd:gYearMonth": rdf.XSDGYearMonth,
	"gYear":          rdf.XSDGYear,
	"xsd:gYear":      rdf.XSDGYear,
}

// DateDatatype resolves a datatype name ("xsd:date", "dateTime", a full
// IRI) to its IRI. It returns "" for unknown names.
func DateDatatype(name string) string {
	if iri, ok := datatypeAliases[name]; ok {
		return iri
	}
	switch name {
	case rdf.XSDDate, rdf.XSDDateTime, rdf.XSDTime, rdf.XSDGYearMonth, rdf.XSDGYear:
		return name
	}
	return ""
}

// isoLayouts are tried, in order, when no explicit format is given.
var isoLayouts = []struct {
	layout   string
	datatype string
	tz       bool
}{
	{time.RFC3339Nano, rdf.XSDDateTime, true},
	{"2006-01-02T15:04:05.999999999", rdf.XSDDateTime, false},
	{"2006-01-02T15:04", rdf.XSDDateTime, false},
	{"2006-01-02Z07:00", rdf.XSDDate, true},
	{"2006-01-02", rdf.XSDDate, false},
	{"15:04:05Z07:00", rdf.XSDTime, true},
	{"15:04:05", rdf.XSDTime, false},
	{"2006-01", rdf.XSDGYearMonth, false},
	{"2006", rdf.XSDGYear, false},
}

// ParseDate parses s. With no formats the ISO 8601 forms are tried and the
// datatype follows the matched form unless datatype overrides it. Formats
// may be Java-style ("dd/MM/yyyy") or Go layouts.
func ParseDate(s string, formats []string, datatype string) (Date, bool) {
	s = strings.TrimSpace(s)
	if len(formats) == 0 {
		for _, l := range isoLayouts {
			t, err := time.Parse(l.layout, s)
			if err != nil {
				continue
			}
			dt := l.datatype
			if datatype != "" {
				dt = datatype
			}
			return Date{T: t, Datatype: dt, HasTZ: l.tz}, true
		}
		return Date{}, false
	}
	for _, f := range formats {
		layout := GoLayout(f)
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		dt := datatype
		if dt == "" {
			dt = inferDatatype(layout)
		}
		return Date{T: t, Datatype: dt, HasTZ: layoutHasZone(layout)}, true
	}
	return Date{}, false
}

func inferDatatype(layout string) string {
	rest := layout
	take := func(tokens ...string) bool {
		for _, t := range tokens {
			if strings.Contains(rest, t) {
				rest = strings.Replace(rest, t, "", 1)
				return true
			}
		}
		return false
	}
	take("Z07:00", "Z0700", "Z07", "-07:00", "-0700", "MST")
	take("Monday", "Mon")
	take("000")
	hour := take("15", "03", "3")
	minute := take("04")
	year := take("2006", "06")
	month := take("January", "Jan", "01", "1")
	day := take("02", "_2", "2")
	hasTime := hour || minute
	switch {
	case hasTime && year:
		return rdf.XSDDateTime
	case hasTime:
		return rdf.XSDTime
	case year && month && !day:
		return rdf.XSDGYearMonth
	case year && !month:
		return rdf.XSDGYear
	default:
		return rdf.XSDDate
	}
}

func layoutHasZone(layout string) bool {
	return strings.Contains(layout, "Z07") || strings.Contains(layout, "-07") || strings.Contains(layout, "MST")
}

// javaTokens maps Java date pattern letters to Go layout fragments,
// longest first.
var javaTokens = []struct{ java, goLayout string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dd", "02"},
	{"d", "2"},
	{"EEEE", "Monday"},
	{"EEE", "Mon"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"SSS", "000"},
	{"a", "PM"},
	{"XXX", "Z07:00"},
	{"XX", "Z0700"},
	{"X", "Z07"},
	{"Z", "-0700"},
	{"z", "MST"},
}

// GoLayout converts a Java-style date pattern to a Go time layout.
// Strings that already look like Go layouts are returned unchanged.
func GoLayout(format string) string {
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
		return format
	}
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '\'' {
			end := strings.IndexByte(format[i+1:], '\'')
			if end < 0 {
				b.WriteString(format[i+1:])
				break
			}
			b.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, tok := range javaTokens {
			if strings.HasPrefix(format[i:], tok.java) {
				b.WriteString(tok.goLayout)
				i += len(tok.java)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}
