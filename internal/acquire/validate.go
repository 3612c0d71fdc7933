// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// headerWindow is how far into a file the %PDF- marker may start.
const headerWindow = 1024

var (
	pdfMarker = []byte("%PDF-")
	eofMarker = []byte("%%EOF")

	// pdfVersion matches a header the parser accepts as is.
	pdfVersion = regexp.MustCompile(`^%PDF-1\.[0-7][\r\n]`)
)

// CheckPDF reports whether path holds a structurally readable PDF.
// It returns ErrArtifactMissing when nothing exists at path. Any other
// parse failure removes the file and returns a *CorruptArtifactError, so a
// file left at an artifact path is always a valid one.
func CheckPDF(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrArtifactMissing
		}
		return &CorruptArtifactError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &CorruptArtifactError{Path: path, Err: errors.New("is a directory")}
	}

	if parseErr := parsePDF(path); parseErr != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return &CorruptArtifactError{Path: path, Err: fmt.Errorf("%v (remove failed: %v)", parseErr, rmErr)}
		}
		return &CorruptArtifactError{Path: path, Err: parseErr, Removed: true}
	}
	return nil
}

// ValidatePDF is the boolean form of CheckPDF.
func ValidatePDF(path string) bool {
	return CheckPDF(path) == nil
}

// parsePDF reads the header, trailer and cross-reference table. Page content
// is not interpreted. Like lenient desktop readers it tolerates junk before
// %PDF- and after the last %%EOF, newer header versions, and a startxref
// offset that misses the xref keyword.
func parsePDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	head := make([]byte, min(size, headerWindow))
	if _, err := f.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	start := bytes.Index(head, pdfMarker)
	if start < 0 {
		return errors.New("not a PDF file: no %PDF- header")
	}
	eof := lastIndexAt(f, size, eofMarker)
	if eof < int64(start) {
		return errors.New("not a PDF file: missing %%EOF")
	}

	section := io.NewSectionReader(f, int64(start), eof+int64(len(eofMarker))-int64(start))
	view := &pdfView{src: section, size: section.Size()}
	if !pdfVersion.Match(head[start:]) {
		view.header = []byte("%PDF-1.7\n")
	}

	firstErr := openView(view)
	if firstErr == nil {
		return nil
	}

	// The recorded startxref may be stale. Retry from the last xref table
	// actually present in the file.
	xref, err := lastXrefTable(section)
	if err != nil || xref < 0 {
		return firstErr
	}
	view.tail = []byte("\nstartxref\n" + strconv.FormatInt(xref, 10) + "\n%%EOF\n")
	if err := openView(view); err != nil {
		return firstErr
	}
	return nil
}

// openView runs the parser over v. Panics raised on malformed input are
// returned as errors.
func openView(v *pdfView) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(v, v.Size())
	if err != nil {
		return err
	}
	if r == nil {
		return errors.New("no PDF reader")
	}
	return nil
}

// lastIndexAt returns the offset of the last occurrence of pat in the first
// size bytes of r, or -1.
func lastIndexAt(r io.ReaderAt, size int64, pat []byte) int64 {
	const chunk = 64 << 10
	end := size
	for end > 0 {
		begin := max(end-chunk, 0)
		buf := make([]byte, end-begin)
		if _, err := r.ReadAt(buf, begin); err != nil && !errors.Is(err, io.EOF) {
			return -1
		}
		if i := bytes.LastIndex(buf, pat); i >= 0 {
			return begin + int64(i)
		}
		if begin == 0 {
			break
		}
		// Overlap so a marker split across chunks is still found.
		end = begin + int64(len(pat)) - 1
	}
	return -1
}

// lastXrefTable returns the offset of the last "xref" keyword that starts a
// line, or -1. The "xref" inside "startxref" never qualifies.
func lastXrefTable(r *io.SectionReader) (int64, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, r.Size()))
	if err != nil {
		return -1, err
	}
	kw := []byte("xref")
	end := len(data)
	for {
		i := bytes.LastIndex(data[:end], kw)
		if i < 0 {
			return -1, nil
		}
		after := i + len(kw)
		if i > 0 && isEOL(data[i-1]) && after < len(data) && isPDFSpace(data[after]) {
			return int64(i), nil
		}
		end = i
	}
}

func isEOL(c byte) bool {
	return c == '\n' || c == '\r'
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

// pdfView exposes the bytes between %PDF- and the last %%EOF to the parser,
// optionally with a normalized header line and an appended trailer.
type pdfView struct {
	src    io.ReaderAt
	size   int64
	header []byte
	tail   []byte
}

// Size is the length of the view including any appended trailer.
func (v *pdfView) Size() int64 {
	return v.size + int64(len(v.tail))
}

func (v *pdfView) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("pdf view: negative offset")
	}
	n := 0
	for n < len(p) {
		pos := off + int64(n)
		switch {
		case pos < int64(len(v.header)) && pos < v.size:
			n += copy(p[n:], v.header[pos:min(int64(len(v.header)), v.size)])
		case pos < v.size:
			want := int(min(v.size-pos, int64(len(p)-n)))
			m, err := v.src.ReadAt(p[n:n+want], pos)
			n += m
			if m < want {
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return n, err
			}
		case pos < v.Size():
			n += copy(p[n:], v.tail[pos-v.size:])
		default:
			return n, io.EOF
		}
	}
	return n, nil
}
