package samcsv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

func writeExtract(t *testing.T, content []byte) *domain.Extract {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.csv")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return &domain.Extract{Name: "extract.csv", Path: path, Segment: "FY2020", Size: int64(len(content))}
}

func collectRows(t *testing.T, ext *domain.Extract) ([]domain.RawRow, []error) {
	t.Helper()
	var rows []domain.RawRow
	var errs []error
	for row, err := range NewReader().Rows(context.Background(), ext) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func TestReader_UTF8WithBOM(t *testing.T) {
	content := "\uFEFFNoticeId,Title,PostedDate,PopCountry\n" +
		"n1,Clinic,2024-01-02,KEN\n" +
		"n2,\"Road, phase 2\",2024-01-03,Côte d'Ivoire\n"
	rows, errs := collectRows(t, writeExtract(t, []byte(content)))

	require.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, "n1", rows[0].Values[ColNoticeID])
	assert.Equal(t, "Road, phase 2", rows[1].Values[ColTitle])
	assert.Equal(t, "Côte d'Ivoire", rows[1].Values[ColPopCountry])
	assert.Equal(t, 3, rows[1].Line)
}

func TestReader_Windows1252Fallback(t *testing.T) {
	// 0xF4 is "ô" in Windows-1252 and invalid as UTF-8.
	content := []byte("Title,PostedDate,PopCountry\nSchool,2024-01-02,C\xF4te d'Ivoire\n")
	rows, errs := collectRows(t, writeExtract(t, content))

	require.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "Côte d'Ivoire", rows[0].Values[ColPopCountry])
}

func TestReader_HeaderVariantsAndShortRows(t *testing.T) {
	content := " Notice ID ,Title,Posted Date,PopCountry,Description\n" +
		"n1,Clinic,2024-01-02,KEN\n"
	rows, errs := collectRows(t, writeExtract(t, []byte(content)))

	require.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "n1", rows[0].Values[ColNoticeID])
	assert.Equal(t, "2024-01-02", rows[0].Values[ColPostedDate])
	assert.Equal(t, "", rows[0].Values[ColDescription])
}

func TestReader_MissingRequiredColumns(t *testing.T) {
	rows, errs := collectRows(t, writeExtract(t, []byte("Foo,Bar\n1,2\n")))

	assert.Empty(t, rows)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrMalformedExtract)
	assert.ErrorIs(t, errs[0], domain.ErrFetch)
}

func TestReader_NoHeader(t *testing.T) {
	_, errs := collectRows(t, writeExtract(t, []byte("")))

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrMalformedExtract)
}

func TestReader_EmptyExtractYieldsNothing(t *testing.T) {
	rows, errs := collectRows(t, &domain.Extract{Empty: true})

	assert.Empty(t, rows)
	assert.Empty(t, errs)
}

func TestReader_StopsWhenConsumerStops(t *testing.T) {
	content := "Title,PostedDate,PopCountry\na,2024-01-01,KEN\nb,2024-01-01,KEN\nc,2024-01-01,KEN\n"
	ext := writeExtract(t, []byte(content))

	n := 0
	for range NewReader().Rows(context.Background(), ext) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestReader_Cancelled(t *testing.T) {
	ext := writeExtract(t, []byte("Title,PostedDate,PopCountry\na,2024-01-01,KEN\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	for _, err := range NewReader().Rows(ctx, ext) {
		got = err
	}
	assert.True(t, errors.Is(got, context.Canceled))
}

func TestTrimPartialRune(t *testing.T) {
	full := []byte("Côte")
	assert.Equal(t, full, trimPartialRune(full))
	assert.Equal(t, []byte("C"), trimPartialRune(full[:2]))
}
