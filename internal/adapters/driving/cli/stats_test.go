package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

func sampleStatistics() *domain.Statistics {
	return &domain.Statistics{
		Total:        1234,
		Active:       321,
		RecentCount:  45,
		Last7Days:    12,
		Last365Days:  600,
		SizeBytes:    3 * 1024 * 1024,
		LatestPosted: time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
		ByCountry: []domain.CountryCount{
			{Code: "NGA", Name: "Nigeria", Count: 400},
			{Code: "KEN", Name: "Kenya", Count: 200},
			{Code: "CIV", Name: "Côte d'Ivoire", Count: 1},
		},
		ByYear: []domain.YearCount{{Year: 2024, Count: 700}, {Year: 2023, Count: 534}},
	}
}

func TestRenderStats(t *testing.T) {
	out := renderStats(sampleStatistics(), 0)

	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "2024-05-30")
	assert.Contains(t, out, "3.0 MB")
	assert.Contains(t, out, "NGA")
	assert.Contains(t, out, "Côte d'Ivoire")
	assert.Contains(t, out, "2023")
	assert.NotContains(t, out, "more")
}

func TestRenderStats_Top(t *testing.T) {
	out := renderStats(sampleStatistics(), 2)

	assert.Contains(t, out, "KEN")
	assert.NotContains(t, out, "CIV")
	assert.Contains(t, out, "... and 1 more")
}

func TestRenderStats_Empty(t *testing.T) {
	out := renderStats(&domain.Statistics{}, 10)

	assert.Contains(t, out, "0.0 MB")
	assert.NotContains(t, out, "By country")
}

func TestStatsCmd_UsesCacheUnlessRefresh(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.query.stats = sampleStatistics()

	_, err := executeCommand(t, "stats")
	require.NoError(t, err)
	assert.False(t, ts.query.refreshed)

	_, err = executeCommand(t, "stats", "--refresh")
	require.NoError(t, err)
	assert.True(t, ts.query.refreshed)
}

func TestStatsCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.query.stats = sampleStatistics()

	out, err := executeCommand(t, "stats", "--json")

	require.NoError(t, err)
	var decoded domain.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 1234, decoded.Total)
	assert.Len(t, decoded.ByCountry, 3)
}
