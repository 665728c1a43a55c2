package samcsv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.ExtractReader = (*Reader)(nil)

const (
	// sniffSize is how much of the file is inspected to pick an encoding.
	sniffSize = 1 << 20

	// cancelCheckEvery is how often, in rows, the context is polled.
	cancelCheckEvery = 1000
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader streams rows out of Contract Opportunities CSV extracts.
// UTF-8 (with or without BOM) is read as is; anything else is decoded
// as Windows-1252, which also covers Latin-1 text.
type Reader struct{}

// NewReader creates a CSV extract reader.
func NewReader() *Reader {
	return &Reader{}
}

// Rows yields every row of the extract keyed by canonical column name.
// A line the CSV parser rejects is yielded as a *domain.ValidationError
// so the caller can count it and move on.
func (r *Reader) Rows(ctx context.Context, extract *domain.Extract) iter.Seq2[domain.RawRow, error] {
	return func(yield func(domain.RawRow, error) bool) {
		if extract == nil || extract.Empty {
			return
		}

		f, err := os.Open(extract.Path)
		if err != nil {
			yield(domain.RawRow{}, &domain.FetchError{Op: "open " + extract.Segment, Err: err})
			return
		}
		defer f.Close()

		src, enc, err := decodedReader(f)
		if err != nil {
			yield(domain.RawRow{}, &domain.FetchError{Op: "read " + extract.Segment, Err: err})
			return
		}
		logger.Debug("reading %s as %s", extract.Name, enc)

		cr := csv.NewReader(src)
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = true

		header, err := readHeader(cr)
		if err != nil {
			yield(domain.RawRow{}, &domain.FetchError{Op: "read " + extract.Segment, Err: err})
			return
		}

		for n := 0; ; n++ {
			if n%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					yield(domain.RawRow{}, err)
					return
				}
			}

			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					ve := &domain.ValidationError{Line: pe.StartLine, Field: "row", Reason: ReasonMalformedLine, Err: err}
					if !yield(domain.RawRow{}, ve) {
						return
					}
					continue
				}
				yield(domain.RawRow{}, &domain.FetchError{Op: "read " + extract.Segment, Err: err})
				return
			}

			line, _ := cr.FieldPos(0)
			row := domain.RawRow{Line: line, Values: make(map[string]string, len(header))}
			for i, col := range header {
				if i < len(record) {
					row.Values[col] = strings.ToValidUTF8(record[i], "\uFFFD")
				} else {
					row.Values[col] = ""
				}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// readHeader reads and canonicalises the header row.
func readHeader(cr *csv.Reader) ([]string, error) {
	raw, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", domain.ErrMalformedExtract)
		}
		return nil, fmt.Errorf("%w: header: %w", domain.ErrMalformedExtract, err)
	}

	header := make([]string, len(raw))
	present := make(map[string]bool, len(raw))
	for i, h := range raw {
		header[i] = CanonicalHeader(h)
		present[header[i]] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", domain.ErrMalformedExtract, strings.Join(missing, ", "))
	}
	return header, nil
}

// decodedReader picks an encoding from the start of the file and
// returns a reader producing UTF-8 with any BOM removed.
func decodedReader(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	sample, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", err
	}

	if bytes.HasPrefix(sample, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, "", err
		}
		return br, "utf-8-bom", nil
	}
	if utf8.Valid(trimPartialRune(sample)) {
		return br, "utf-8", nil
	}
	return charmap.Windows1252.NewDecoder().Reader(br), "windows-1252", nil
}

// trimPartialRune drops a multi-byte sequence cut off at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}
