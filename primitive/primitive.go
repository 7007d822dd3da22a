package primitive

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-sas/sas7bdat/endian"
	"github.com/go-sas/sas7bdat/errs"
)

// Epoch is SAS's zero point for date, time, and datetime values:
// midnight, 1960-01-01 UTC. date values are a count of days since Epoch,
// datetime values a count of seconds, and time values a count of seconds
// within a day with no date component.
var Epoch = time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC)

// ReadInt decodes a signed integer of the given size (1, 2, 4, or 8 bytes)
// from the start of data.
func ReadInt(data []byte, size int, engine endian.EndianEngine) (int64, error) {
	if len(data) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrTruncatedField, size, len(data))
	}

	switch size {
	case 1:
		return int64(int8(data[0])), nil
	case 2:
		return int64(int16(engine.Uint16(data[:2]))), nil
	case 4:
		return int64(int32(engine.Uint32(data[:4]))), nil
	case 8:
		return int64(engine.Uint64(data[:8])), nil
	default:
		return 0, fmt.Errorf("unsupported integer size %d", size)
	}
}

// ReadDouble decodes a full-width IEEE-754 double from the first 8 bytes
// of data. missing reports whether the decoded value is SAS's NaN-coded
// absence marker.
func ReadDouble(data []byte, engine endian.EndianEngine) (value float64, missing bool, err error) {
	if len(data) < 8 {
		return 0, false, fmt.Errorf("%w: need 8 bytes, have %d", errs.ErrTruncatedField, len(data))
	}

	v := math.Float64frombits(engine.Uint64(data[:8]))

	return v, math.IsNaN(v), nil
}

// ReadString decodes a fixed-width character field, stripping trailing
// NUL padding and outer whitespace.
func ReadString(data []byte, size int) (string, error) {
	if len(data) < size {
		return "", fmt.Errorf("%w: need %d bytes, have %d", errs.ErrTruncatedField, size, len(data))
	}

	s := string(data[:size])
	s = strings.TrimRight(s, "\x00")

	return strings.TrimSpace(s), nil
}

// ReadNumeric decodes one of SAS's "short" doubles: size bytes (size ≤ 8)
// holding the most significant bytes of a double, with the dropped
// low-order bytes implicitly zero. A little-endian file stores those size
// bytes at the high end of the 8-byte word (the missing bytes are
// prepended as zero); a big-endian file stores them at the low end (the
// missing bytes are appended as zero).
func ReadNumeric(data []byte, size int, engine endian.EndianEngine) (value float64, missing bool, err error) {
	if size <= 0 || size > 8 {
		return 0, false, fmt.Errorf("invalid numeric field size %d", size)
	}
	if len(data) < size {
		return 0, false, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrTruncatedField, size, len(data))
	}

	var buf [8]byte
	if engine == endian.GetLittleEndianEngine() {
		copy(buf[8-size:], data[:size])
	} else {
		copy(buf[:size], data[:size])
	}

	v := math.Float64frombits(engine.Uint64(buf[:]))

	return v, math.IsNaN(v), nil
}

// ReadDateTime decodes a SAS datetime: seconds since Epoch.
func ReadDateTime(data []byte, size int, engine endian.EndianEngine) (value time.Time, missing bool, err error) {
	seconds, missing, err := ReadNumeric(data, size, engine)
	if err != nil || missing {
		return time.Time{}, missing, err
	}

	return Epoch.Add(time.Duration(seconds * float64(time.Second))), false, nil
}

// ReadDate decodes a SAS date: whole days since Epoch.
func ReadDate(data []byte, size int, engine endian.EndianEngine) (value time.Time, missing bool, err error) {
	days, missing, err := ReadNumeric(data, size, engine)
	if err != nil || missing {
		return time.Time{}, missing, err
	}

	return Epoch.Add(time.Duration(days * 24 * float64(time.Hour))), false, nil
}

// ReadTime decodes a SAS time-of-day value: the clock component of
// Epoch plus the stored seconds, discarding the date part.
func ReadTime(data []byte, size int, engine endian.EndianEngine) (value time.Duration, missing bool, err error) {
	seconds, missing, err := ReadNumeric(data, size, engine)
	if err != nil || missing {
		return 0, missing, err
	}

	dt := Epoch.Add(time.Duration(seconds * float64(time.Second)))
	clock := dt.Sub(time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, time.UTC))

	return clock, false, nil
}
