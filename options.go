package sas7bdat

import (
	"github.com/go-sas/sas7bdat/internal/options"
	"github.com/go-sas/sas7bdat/row"
)

// config holds a Reader's configurable behavior, assembled from Option
// values before the file is parsed.
type config struct {
	warn       func(string, ...any)
	formatSets row.FormatSets
}

func defaultConfig() *config {
	return &config{
		warn:       func(string, ...any) {},
		formatSets: row.DefaultFormatSets(),
	}
}

// Option configures a Reader at construction time.
type Option = options.Option[*config]

// WithWarningHandler routes non-fatal diagnostics (unknown subheader
// signatures, a host string outside the recognized set, column-count
// mismatches between subheaders) to fn instead of discarding them.
func WithWarningHandler(fn func(format string, args ...any)) Option {
	return options.NoError[*config](func(c *config) {
		c.warn = fn
	})
}

// WithExtraTimeFormats registers additional format strings that decode
// as a time-of-day column, beyond the built-in TIME.
func WithExtraTimeFormats(formats ...string) Option {
	return options.NoError[*config](func(c *config) {
		c.formatSets.AddTimeFormats(formats...)
	})
}

// WithExtraDateTimeFormats registers additional format strings that
// decode as a datetime column, beyond the built-in DATETIME.
func WithExtraDateTimeFormats(formats ...string) Option {
	return options.NoError[*config](func(c *config) {
		c.formatSets.AddDateTimeFormats(formats...)
	})
}

// WithExtraDateFormats registers additional format strings that decode
// as a date column, beyond the built-ins (YYMMDD, MMDDYY, DDMMYY, DATE,
// JULIAN, MONYY).
func WithExtraDateFormats(formats ...string) Option {
	return options.NoError[*config](func(c *config) {
		c.formatSets.AddDateFormats(formats...)
	})
}
