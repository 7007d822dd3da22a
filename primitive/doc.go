// Package primitive provides endian- and width-aware decoding of the raw
// field types a sas7bdat file stores: signed integers, IEEE-754 doubles
// (including SAS's "short" doubles, truncated to save space), fixed-width
// strings, and the three temporal kinds built on SAS's 1960-01-01 epoch.
//
// Every function here is a pure read over a byte slice plus an
// endian.EndianEngine; none of them retain state or allocate beyond the
// single value returned, mirroring the teacher's raw numeric codec
// (endian/engine.go) adapted from a columnar encode/decode pair to a
// single-shot field reader.
package primitive
