package header_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-sas/sas7bdat/header"
)

// buildHeader constructs a minimal, well-formed leading header of the
// given total length, word width, and byte order, with every field this
// package reads set to a known value so the parse can be checked
// field-by-field.
func buildHeader(totalLength, align1, align2 int, little bool) []byte {
	buf := make([]byte, totalLength)
	copy(buf, header.Magic[:])

	if align2 > 0 {
		buf[32] = '3' // marks an 8-byte file
	}
	if align1 > 0 {
		buf[35] = '3'
	}

	if little {
		buf[37] = 0x01
	} else {
		buf[37] = 0x00
	}
	buf[39] = '1' // unix

	copy(buf[92:92+64], []byte("mydata"))
	copy(buf[156:156+8], []byte("DATA"))

	putInt := func(off, length int, v uint64) {
		if little {
			for i := 0; i < length; i++ {
				buf[off+i] = byte(v >> (8 * i))
			}
		} else {
			for i := 0; i < length; i++ {
				buf[off+length-1-i] = byte(v >> (8 * i))
			}
		}
	}

	putInt(196+align1, 4, uint64(totalLength))
	putInt(200+align1, 4, 4096)
	putInt(204+align1, 4, 3)

	totalAlign := align1 + align2
	copy(buf[216+totalAlign:216+totalAlign+8], []byte("9.4"))
	copy(buf[224+totalAlign:224+totalAlign+16], []byte("XYZ"))
	copy(buf[240+totalAlign:240+totalAlign+16], []byte("5.1"))
	copy(buf[272+totalAlign:272+totalAlign+16], []byte("Linux"))

	return buf
}

type readerAt struct{ data []byte }

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, bytes.ErrTooLarge
	}
	return n, nil
}

func TestParse(t *testing.T) {
	t.Run("4-byte little-endian", func(t *testing.T) {
		data := buildHeader(288, 0, 0, true)
		h, err := header.Parse(readerAt{data}, "test.sas7bdat", nil)
		require.NoError(t, err)
		require.Equal(t, 4, h.WordWidth)
		require.Equal(t, "unix", h.Platform)
		require.Equal(t, "mydata", h.DatasetName)
		require.Equal(t, "DATA", h.FileType)
		require.Equal(t, 4096, h.PageLength)
		require.Equal(t, 3, h.PageCount)
		require.Equal(t, "9.4", h.SASRelease)
		require.Equal(t, "Linux", h.OSName)
		require.Equal(t, 16, h.PageBitOffset())
		require.Equal(t, 12, h.SubheaderPointerLength())
	})

	t.Run("8-byte big-endian requires header length 8192", func(t *testing.T) {
		data := buildHeader(8192, 4, 4, false)
		h, err := header.Parse(readerAt{data}, "test.sas7bdat", nil)
		require.NoError(t, err)
		require.Equal(t, 8, h.WordWidth)
		require.Equal(t, 32, h.PageBitOffset())
		require.Equal(t, 24, h.SubheaderPointerLength())
		require.Equal(t, 4096, h.PageLength)
	})

	t.Run("8-byte header length mismatch is rejected", func(t *testing.T) {
		data := buildHeader(4096, 4, 4, true)
		_, err := header.Parse(readerAt{data}, "test.sas7bdat", nil)
		require.Error(t, err)
	})

	t.Run("magic mismatch", func(t *testing.T) {
		data := buildHeader(288, 0, 0, true)
		data[0] = 0xFF
		_, err := header.Parse(readerAt{data}, "test.sas7bdat", nil)
		require.Error(t, err)
	})

	t.Run("os_name falls back to os_maker when blank", func(t *testing.T) {
		data := buildHeader(288, 0, 0, true)
		for i := 272; i < 272+16; i++ {
			data[i] = 0
		}
		copy(data[256:256+16], []byte("ACME"))
		h, err := header.Parse(readerAt{data}, "test.sas7bdat", nil)
		require.NoError(t, err)
		require.Equal(t, "ACME", h.OSName)
	})

	t.Run("unknown host string is recognized as unknown", func(t *testing.T) {
		require.False(t, header.IsKnownHost("NOT_A_REAL_HOST"))
		require.True(t, header.IsKnownHost("Linux"))
	})

	t.Run("unrecognized host triggers the warn callback", func(t *testing.T) {
		data := buildHeader(288, 0, 0, true)
		copy(data[272:272+16], make([]byte, 16)) // clear os_name
		copy(data[256:256+16], []byte("NOT_A_REAL_HOST"))

		var warnings []string
		warn := func(format string, args ...any) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		}

		h, err := header.Parse(readerAt{data}, "test.sas7bdat", warn)
		require.NoError(t, err)
		require.Equal(t, "NOT_A_REAL_HOST", h.OSName)
		require.Len(t, warnings, 1)
		require.Contains(t, warnings[0], "NOT_A_REAL_HOST")
	})

	t.Run("recognized host does not warn", func(t *testing.T) {
		data := buildHeader(288, 0, 0, true) // os_name is "Linux"

		called := false
		warn := func(string, ...any) { called = true }

		_, err := header.Parse(readerAt{data}, "test.sas7bdat", warn)
		require.NoError(t, err)
		require.False(t, called)
	})

	t.Run("negative page length is fatal", func(t *testing.T) {
		data := buildHeader(288, 0, 0, true)
		for i := 0; i < 4; i++ {
			data[200+i] = 0xFF
		}
		_, err := header.Parse(readerAt{data}, "test.sas7bdat", nil)
		require.Error(t, err)
	})
}
