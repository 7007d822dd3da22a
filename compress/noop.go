package compress

// NoOpRowDecompressor handles CompressionNone datasets, where a row's bytes
// on the page are already the uncompressed row and no expansion is needed.
//
// The reader only reaches a decompressor when the dataset is compressed and
// a row's stored length is shorter than row_length (see Reader.decodeRow in
// the root sas7bdat package); for an uncompressed dataset that never
// happens, so this type mainly exists to keep the
// compression-type-to-decompressor dispatch total and uniform.
type NoOpRowDecompressor struct{}

var _ RowDecompressor = NoOpRowDecompressor{}

// NewNoOpRowDecompressor returns a decompressor that passes rows through.
func NewNoOpRowDecompressor() NoOpRowDecompressor {
	return NoOpRowDecompressor{}
}

// DecompressRow returns src unchanged, or padded/truncated to rowLength if
// it disagrees with the caller's expectation.
func (NoOpRowDecompressor) DecompressRow(src []byte, rowLength int) ([]byte, error) {
	if len(src) == rowLength {
		return src, nil
	}

	if len(src) > rowLength {
		return src[:rowLength], nil
	}

	out := make([]byte, rowLength)
	copy(out, src)

	return out, nil
}
