package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// File signatures. A file is the signature followed by EntrySize-byte records.
const (
	SignatureV1 = "SugaR"
	SignatureV2 = "SugaR Experience version 2"

	CurrentVersion   = 2
	CurrentSignature = SignatureV2
)

// Reader decodes one historical file version into the current Entry shape.
type Reader interface {
	Version() int
	IsCurrent() bool
	Signature() string

	// CheckSignature reports whether r holds a file of this version. length
	// is the total file size. On success r is positioned at the first
	// record; on failure it is rewound to the start.
	CheckSignature(r io.ReadSeeker, length int64) bool

	// EntryCount returns the number of records in a file of the given size.
	EntryCount(length int64) int64

	// Read decodes exactly one record into e.
	Read(r io.Reader, e *Entry) error
}

type header struct {
	version int
	sig     string
}

func (h header) Version() int      { return h.version }
func (h header) IsCurrent() bool   { return h.version == CurrentVersion }
func (h header) Signature() string { return h.sig }

func (h header) EntryCount(length int64) int64 {
	if length < int64(len(h.sig)) {
		return 0
	}
	return (length - int64(len(h.sig))) / EntrySize
}

func (h header) CheckSignature(r io.ReadSeeker, length int64) (ok bool) {
	defer func() {
		if !ok {
			_, _ = r.Seek(0, io.SeekStart)
		}
	}()

	n := int64(len(h.sig))
	if length < n || (length-n)%EntrySize != 0 {
		return false
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return false
	}
	return bytes.Equal(buf, []byte(h.sig))
}

func readRecord(r io.Reader, buf *[EntrySize]byte) error {
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}
	return nil
}

type v1Reader struct{ header }

func (v1Reader) Read(r io.Reader, e *Entry) error {
	var buf [EntrySize]byte
	if err := readRecord(r, &buf); err != nil {
		return err
	}
	var le LegacyEntry
	le.decode(buf[:])
	*e = le.Upgrade()
	return nil
}

type v2Reader struct{ header }

func (v2Reader) Read(r io.Reader, e *Entry) error {
	var buf [EntrySize]byte
	if err := readRecord(r, &buf); err != nil {
		return err
	}
	e.decode(buf[:])
	return nil
}

// readers lists every supported version, newest first.
var readers = []Reader{
	v2Reader{header{version: 2, sig: SignatureV2}},
	v1Reader{header{version: 1, sig: SignatureV1}},
}

func init() {
	current := 0
	for _, rd := range readers {
		if rd.IsCurrent() {
			current++
		}
	}
	if current != 1 {
		panic(fmt.Sprintf("store: %d readers claim the current version", current))
	}
}

// Readers returns the registered readers, newest first.
func Readers() []Reader { return readers }

// DetectReader returns the first reader, newest first, that accepts r.
func DetectReader(r io.ReadSeeker, length int64) (Reader, error) {
	for _, rd := range readers {
		if rd.CheckSignature(r, length) {
			return rd, nil
		}
	}
	return nil, ErrInvalidFormat
}

// WriteHeader writes the current signature.
func WriteHeader(w io.Writer) error {
	_, err := io.WriteString(w, CurrentSignature)
	return err
}
