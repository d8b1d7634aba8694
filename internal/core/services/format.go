package services

import (
	"time"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Catalog keys. The English text doubles as the key.
const (
	msgInProgress      = "in progress"
	msgLessThanMinute  = "less than a minute"
	msgDays            = "%d days"
	msgHours           = "%d hours"
	msgMinutes         = "%d minutes"
	msgUnitPair        = "%s %s"
	layoutEnglish      = "Mon, Jan 2, 2006 3:04 PM"
	layoutDayFirst     = "02/01/2006 15:04"
	defaultLanguageTag = "en"
)

var (
	formatCatalog = buildFormatCatalog()

	defaultFormatter = NewFormatter(language.English, nil)
)

func buildFormatCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	mustSet := func(tag language.Tag, key string, msg ...catalog.Message) {
		if err := b.Set(tag, key, msg...); err != nil {
			panic(err)
		}
	}

	mustSet(language.English, msgInProgress, catalog.String("in progress"))
	mustSet(language.English, msgLessThanMinute, catalog.String("less than a minute"))
	mustSet(language.English, msgDays, plural.Selectf(1, "%d", "=1", "%d day", "other", "%d days"))
	mustSet(language.English, msgHours, plural.Selectf(1, "%d", "=1", "%d hour", "other", "%d hours"))
	mustSet(language.English, msgMinutes, plural.Selectf(1, "%d", "=1", "%d minute", "other", "%d minutes"))
	mustSet(language.English, msgUnitPair, catalog.String("%s %s"))

	mustSet(language.Spanish, msgInProgress, catalog.String("en curso"))
	mustSet(language.Spanish, msgLessThanMinute, catalog.String("menos de un minuto"))
	mustSet(language.Spanish, msgDays, plural.Selectf(1, "%d", "=1", "%d día", "other", "%d días"))
	mustSet(language.Spanish, msgHours, plural.Selectf(1, "%d", "=1", "%d hora", "other", "%d horas"))
	mustSet(language.Spanish, msgMinutes, plural.Selectf(1, "%d", "=1", "%d minuto", "other", "%d minutos"))
	mustSet(language.Spanish, msgUnitPair, catalog.String("%s y %s"))

	return b
}

// Formatter renders meeting times for one display language.
type Formatter struct {
	printer  *message.Printer
	layout   string
	location *time.Location
}

// NewFormatter returns a formatter for tag. A nil location keeps the location of each timestamp.
func NewFormatter(tag language.Tag, location *time.Location) *Formatter {
	layout := layoutEnglish
	if base, _ := tag.Base(); base.String() != defaultLanguageTag {
		layout = layoutDayFirst
	}
	return &Formatter{
		printer:  message.NewPrinter(tag, message.Catalog(formatCatalog)),
		layout:   layout,
		location: location,
	}
}

// NewFormatterFor parses a BCP 47 tag and an IANA zone name; empty values fall back to English and
// the timestamp's own location.
func NewFormatterFor(lang, zone string) (*Formatter, error) {
	tag := language.English
	if lang != "" {
		parsed, err := language.Parse(lang)
		if err != nil {
			return nil, err
		}
		tag = parsed
	}
	var loc *time.Location
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return nil, err
		}
		loc = l
	}
	return NewFormatter(tag, loc), nil
}

// TimeRemaining buckets the wait until start into the two largest non-zero units among days,
// hours and minutes. Seconds are never shown.
func (f *Formatter) TimeRemaining(start, now time.Time) string {
	if !now.Before(start) {
		return f.printer.Sprintf(msgInProgress)
	}
	text, ok := f.unitPair(start.Sub(now))
	if !ok {
		return f.printer.Sprintf(msgLessThanMinute)
	}
	return text
}

// Duration renders the length of the window between start and end.
func (f *Formatter) Duration(start, end time.Time) string {
	text, ok := f.unitPair(end.Sub(start))
	if !ok {
		return f.printer.Sprintf(msgMinutes, 0)
	}
	return text
}

func (f *Formatter) DateTime(t time.Time) string {
	if f.location != nil {
		t = t.In(f.location)
	}
	return t.Format(f.layout)
}

// unitPair pairs the largest non-zero unit with the next smaller unit only, so a zero middle
// unit ends the text: 2d 0h 5m is "2 days".
func (f *Formatter) unitPair(d time.Duration) (string, bool) {
	if d < time.Minute {
		return "", false
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0 && hours > 0:
		return f.printer.Sprintf(msgUnitPair, f.printer.Sprintf(msgDays, days), f.printer.Sprintf(msgHours, hours)), true
	case days > 0:
		return f.printer.Sprintf(msgDays, days), true
	case hours > 0 && minutes > 0:
		return f.printer.Sprintf(msgUnitPair, f.printer.Sprintf(msgHours, hours), f.printer.Sprintf(msgMinutes, minutes)), true
	case hours > 0:
		return f.printer.Sprintf(msgHours, hours), true
	default:
		return f.printer.Sprintf(msgMinutes, minutes), true
	}
}

// FormatTimeRemaining uses the English formatter.
func FormatTimeRemaining(start, now time.Time) string {
	return defaultFormatter.TimeRemaining(start, now)
}

func FormatDateTime(t time.Time) string {
	return defaultFormatter.DateTime(t)
}

func CalculateDuration(start, end time.Time) string {
	return defaultFormatter.Duration(start, end)
}
