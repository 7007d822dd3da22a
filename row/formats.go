package row

// FormatSets classifies a column's format string as a time-of-day, a
// datetime, or a date, so its stored double decodes to the matching
// Cell kind instead of a plain number. An unrecognized or empty format
// string always falls back to a plain number, matching how SAS itself
// treats an unknown format.
type FormatSets struct {
	Time     map[string]struct{}
	DateTime map[string]struct{}
	Date     map[string]struct{}
}

// DefaultFormatSets returns the standard SAS format-string
// classification.
func DefaultFormatSets() FormatSets {
	return FormatSets{
		Time: setOf("TIME"),
		DateTime: setOf("DATETIME"),
		Date: setOf("YYMMDD", "MMDDYY", "DDMMYY", "DATE", "JULIAN", "MONYY"),
	}
}

func setOf(values ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// AddTimeFormats extends the time-of-day format-string set.
func (fs *FormatSets) AddTimeFormats(values ...string) {
	fs.Time = addTo(fs.Time, values)
}

// AddDateTimeFormats extends the datetime format-string set.
func (fs *FormatSets) AddDateTimeFormats(values ...string) {
	fs.DateTime = addTo(fs.DateTime, values)
}

// AddDateFormats extends the date format-string set.
func (fs *FormatSets) AddDateFormats(values ...string) {
	fs.Date = addTo(fs.Date, values)
}

func addTo(set map[string]struct{}, values []string) map[string]struct{} {
	if set == nil {
		set = make(map[string]struct{}, len(values))
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// classify reports which temporal Kind a format string names, or
// KindDouble when it names none of them.
func (fs FormatSets) classify(format string) Kind {
	if format == "" {
		return KindDouble
	}
	if _, ok := fs.Time[format]; ok {
		return KindTime
	}
	if _, ok := fs.DateTime[format]; ok {
		return KindDateTime
	}
	if _, ok := fs.Date[format]; ok {
		return KindDate
	}
	return KindDouble
}
