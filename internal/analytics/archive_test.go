package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotReport(at time.Time, total int) *Report {
	return &Report{
		GeneratedAt: at,
		Overview: Overview{
			TotalLeads:     total,
			HotLeads:       1,
			ConversionRate: 25.0,
			AvgScore:       60.0,
		},
		VehicleInterest: map[string]int{"toro": 2},
	}
}

func TestArchive_SaveAndList(t *testing.T) {
	ctx := context.Background()
	archive, err := OpenArchive(":memory:")
	require.NoError(t, err)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	first, err := archive.Save(ctx, snapshotReport(base, 4))
	require.NoError(t, err)
	second, err := archive.Save(ctx, snapshotReport(base.Add(time.Hour), 6))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	t.Run("newest first", func(t *testing.T) {
		entities, err := archive.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entities, 2)
		assert.Equal(t, 6, entities[0].TotalLeads)
		assert.Equal(t, 4, entities[1].TotalLeads)
	})

	t.Run("limit is honored", func(t *testing.T) {
		entities, err := archive.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, 6, entities[0].TotalLeads)
	})

	t.Run("blob decodes back to the report", func(t *testing.T) {
		entities, err := archive.List(ctx, 1)
		require.NoError(t, err)

		report, err := entities[0].Decode()
		require.NoError(t, err)
		assert.Equal(t, 6, report.Overview.TotalLeads)
		assert.Equal(t, map[string]int{"toro": 2}, report.VehicleInterest)
	})
}

func TestArchive_ListDefaultLimit(t *testing.T) {
	ctx := context.Background()
	archive, err := OpenArchive(":memory:")
	require.NoError(t, err)

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 35; i++ {
		_, err := archive.Save(ctx, snapshotReport(base.Add(time.Duration(i)*time.Hour), i))
		require.NoError(t, err)
	}

	entities, err := archive.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entities, 30)
}

func TestArchive_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	archive, err := OpenArchive(path)
	require.NoError(t, err)
	_, err = archive.Save(ctx, snapshotReport(time.Now().UTC(), 4))
	require.NoError(t, err)

	reopened, err := OpenArchive(path)
	require.NoError(t, err)
	entities, err := reopened.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entities, 1)

	t.Run("corrupted blob is an error, not a panic", func(t *testing.T) {
		entity := entities[0]
		entity.Report = []byte("{broken")
		_, err := entity.Decode()
		require.Error(t, err)
	})
}
