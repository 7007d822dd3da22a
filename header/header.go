package header

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-sas/sas7bdat/endian"
	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/primitive"
)

// Magic is the 32-byte constant every sas7bdat file begins with.
var Magic = [32]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xC2, 0xEA, 0x81, 0x60,
	0xB3, 0x14, 0x11, 0xCF, 0xBD, 0x92, 0x08, 0x00,
	0x09, 0xC7, 0x31, 0x8C, 0x18, 0x1F, 0x10, 0x11,
}

const (
	leadingHeaderSize = 288

	align1Offset      = 32
	align2Offset      = 35
	alignCheckerValue = '3'
	align1Value       = 4
	align2Value       = 4

	endiannessOffset = 37
	platformOffset   = 39

	datasetOffset = 92
	datasetLength = 64

	fileTypeOffset = 156
	fileTypeLength = 8

	dateCreatedOffset  = 164
	dateModifiedOffset = 172
	dateFieldLength    = 8

	headerSizeOffset = 196
	headerSizeLength = 4

	pageSizeOffset = 200
	pageSizeLength = 4

	pageCountOffset = 204
	pageCountLength = 4

	sasReleaseOffset = 216
	sasReleaseLength = 8

	serverTypeOffset = 224
	serverTypeLength = 16

	osTypeOffset = 240
	osTypeLength = 16

	osMakerOffset = 256
	osMakerLength = 16

	osNameOffset = 272
	osNameLength = 16

	word64HeaderLength = 8192
)

// hostWarningSet is the fixed set of host strings the format recognizes;
// anything else is logged as a warning but does not stop the reader.
var hostWarningSet = map[string]struct{}{
	"WIN_PRO": {}, "WIN_NT": {}, "WIN_NTSV": {}, "WIN_SRV": {}, "WIN_ASRV": {},
	"XP_PRO": {}, "XP_HOME": {}, "NET_ASRV": {}, "NET_DSRV": {}, "NET_SRV": {},
	"WIN_98": {}, "W32_VSPRO": {}, "WIN": {}, "WIN_95": {}, "X64_VSPRO": {},
	"AIX": {}, "X64_ESRV": {}, "W32_ESRV": {}, "W32_7PRO": {}, "W32_VSHOME": {},
	"X64_7HOME": {}, "X64_7PRO": {}, "X64_SRV0": {}, "W32_SRV0": {}, "X64_ES08": {},
	"Linux": {}, "HP-UX": {},
}

// IsKnownHost reports whether host is in the fixed set of recognized
// producing platforms.
func IsKnownHost(host string) bool {
	_, ok := hostWarningSet[host]
	return ok
}

// GlobalHeader is the fixed leading header of a sas7bdat file: the
// word-width/endianness/platform flags every later offset depends on,
// plus the file-level metadata fields.
type GlobalHeader struct {
	WordWidth int // 4 or 8
	Align1    int
	Align2    int
	Engine    endian.EndianEngine
	Platform  string // "unix", "windows", or "unknown"

	DatasetName string
	FileType    string

	DateCreated     time.Time
	HasDateCreated  bool
	DateModified    time.Time
	HasDateModified bool

	HeaderLength int
	PageLength   int
	PageCount    int

	SASRelease string
	ServerType string
	OSType     string
	OSName     string
}

// PageBitOffset is the byte offset of the page-type field within every
// page of this file (16 for 4-byte files, 32 for 8-byte files).
func (h *GlobalHeader) PageBitOffset() int {
	if h.WordWidth == 8 {
		return 32
	}
	return 16
}

// SubheaderPointerLength is the byte size of one subheader pointer
// entry (12 for 4-byte files, 24 for 8-byte files).
func (h *GlobalHeader) SubheaderPointerLength() int {
	if h.WordWidth == 8 {
		return 24
	}
	return 12
}

// Parse reads and validates the leading header from r, returning the
// frozen file parameters every other component needs.
// warn, when non-nil, receives a diagnostic for a host string outside
// hostWarningSet; it does not stop the parse.
func Parse(r io.ReaderAt, path string, warn func(string, ...any)) (*GlobalHeader, error) {
	lead := make([]byte, leadingHeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, leadingHeaderSize), lead); err != nil {
		return nil, errs.Wrap(path, "header.Parse", fmt.Errorf("%w: %v", errs.ErrNotSAS, err))
	}

	for i, b := range Magic {
		if lead[i] != b {
			return nil, errs.Wrap(path, "header.Parse", errs.ErrNotSAS)
		}
	}

	h := &GlobalHeader{}

	align2 := 0
	align1 := 0
	wordWidth := 4
	if lead[align1Offset] == alignCheckerValue {
		align2 = align2Value
		wordWidth = 8
	}
	if lead[align2Offset] == alignCheckerValue {
		align1 = align1Value
	}
	h.Align1 = align1
	h.Align2 = align2
	h.WordWidth = wordWidth
	totalAlign := align1 + align2

	if lead[endiannessOffset] == 0x01 {
		h.Engine = endian.GetLittleEndianEngine()
	} else {
		h.Engine = endian.GetBigEndianEngine()
	}

	switch lead[platformOffset] {
	case '1':
		h.Platform = "unix"
	case '2':
		h.Platform = "windows"
	default:
		h.Platform = "unknown"
	}

	name, err := primitive.ReadString(lead[datasetOffset:], datasetLength)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.DatasetName = name

	fileType, err := primitive.ReadString(lead[fileTypeOffset:], fileTypeLength)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.FileType = fileType

	headerLen, err := primitive.ReadInt(lead[headerSizeOffset+align1:], headerSizeLength, h.Engine)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.HeaderLength = int(headerLen)
	if wordWidth == 8 && h.HeaderLength != word64HeaderLength {
		return nil, errs.Wrap(path, "header.Parse", fmt.Errorf("%w: 8-byte header length %d != %d", errs.ErrNotSAS, h.HeaderLength, word64HeaderLength))
	}

	rest := make([]byte, h.HeaderLength-leadingHeaderSize)
	if len(rest) > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(r, leadingHeaderSize, int64(len(rest))), rest); err != nil {
			return nil, errs.Wrap(path, "header.Parse", fmt.Errorf("%w: %v", errs.ErrTruncatedFile, err))
		}
	}
	full := append(lead, rest...)

	pageLen, err := primitive.ReadInt(full[pageSizeOffset+align1:], pageSizeLength, h.Engine)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	if pageLen <= 0 {
		return nil, errs.Wrap(path, "header.Parse", errs.ErrInvalidPageLength)
	}
	h.PageLength = int(pageLen)

	pageCount, err := primitive.ReadInt(full[pageCountOffset+align1:], pageCountLength, h.Engine)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.PageCount = int(pageCount)

	if dateCreated, missing, err := readTimestamp(full, dateCreatedOffset+align1, h.Engine); err == nil && !missing {
		h.DateCreated = dateCreated
		h.HasDateCreated = true
	}
	if dateModified, missing, err := readTimestamp(full, dateModifiedOffset+align1, h.Engine); err == nil && !missing {
		h.DateModified = dateModified
		h.HasDateModified = true
	}

	sasRelease, err := primitive.ReadString(full[sasReleaseOffset+totalAlign:], sasReleaseLength)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.SASRelease = sasRelease

	serverType, err := primitive.ReadString(full[serverTypeOffset+totalAlign:], serverTypeLength)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.ServerType = serverType

	osType, err := primitive.ReadString(full[osTypeOffset+totalAlign:], osTypeLength)
	if err != nil {
		return nil, errs.Wrap(path, "header.Parse", err)
	}
	h.OSType = osType

	// os_name falls back to os_maker when the producer left it blank.
	if full[osNameOffset+totalAlign] != 0 {
		osName, err := primitive.ReadString(full[osNameOffset+totalAlign:], osNameLength)
		if err != nil {
			return nil, errs.Wrap(path, "header.Parse", err)
		}
		h.OSName = osName
	} else {
		osName, err := primitive.ReadString(full[osMakerOffset+totalAlign:], osMakerLength)
		if err != nil {
			return nil, errs.Wrap(path, "header.Parse", err)
		}
		h.OSName = osName
	}

	if h.OSName != "" && !IsKnownHost(h.OSName) && warn != nil {
		warn("sas7bdat: unrecognized host %q", h.OSName)
	}

	return h, nil
}

// readTimestamp decodes an 8-byte IEEE-754 double holding seconds since
// the SAS epoch at offset. Decode failures (e.g. a NaN sentinel) are
// non-fatal: callers leave the field unset rather than abort the parse.
func readTimestamp(data []byte, offset int, engine endian.EndianEngine) (time.Time, bool, error) {
	if offset+8 > len(data) {
		return time.Time{}, true, fmt.Errorf("%w: header too short for timestamp", errs.ErrTruncatedFile)
	}
	seconds, missing, err := primitive.ReadDouble(data[offset:offset+8], engine)
	if err != nil || missing || math.IsInf(seconds, 0) {
		return time.Time{}, true, err
	}
	return primitive.Epoch.Add(time.Duration(seconds * float64(time.Second))), false, nil
}
