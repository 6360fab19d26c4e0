package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeReport(id string, started time.Time) *bulk.Report {
	return &bulk.Report{
		ID:         id,
		State:      bulk.StateCompleted,
		Succeeded:  1,
		Total:      2,
		Profile:    model.DefaultCostProfile(),
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Items: []model.BulkItem{
			{
				Identifier: "b07xj8c8f5",
				ASIN:       "B07XJ8C8F5",
				Status:     model.StatusSuccess,
				Analytics: &model.AnalyticsRecord{
					ASIN:        "B07XJ8C8F5",
					Title:       "Wireless Earbuds",
					Category:    model.CategoryElectronics,
					BuyBoxPrice: 49.99,
					SalesRank:   1200,
					Fees:        model.FeeResult{NetProfit: 14.49, ROIPercent: 50, MarginPercent: 29},
					Score:       71.3,
					FetchedAt:   started,
				},
			},
			{
				Identifier: "not-an-id",
				Status:     model.StatusError,
				Failure:    model.FailureInvalid,
				Error:      "Invalid format",
			},
		},
	}
}

func TestSQLiteStore_SaveAndGetReport(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rep := makeReport("run-1", started)
	require.NoError(t, s.SaveReport(ctx, rep))

	got, err := s.GetReport(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, rep.ID, got.ID)
	assert.Equal(t, bulk.StateCompleted, got.State)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, rep.Profile, got.Profile)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, rep.FinishedAt.Equal(got.FinishedAt))

	require.Len(t, got.Items, 2)
	assert.Equal(t, "b07xj8c8f5", got.Items[0].Identifier)
	require.NotNil(t, got.Items[0].Analytics)
	assert.Equal(t, "Wireless Earbuds", got.Items[0].Analytics.Title)
	assert.Equal(t, 14.49, got.Items[0].Analytics.Fees.NetProfit)
	assert.Equal(t, model.FailureInvalid, got.Items[1].Failure)
	assert.Nil(t, got.Items[1].Analytics)
	assert.Equal(t, "1/2 succeeded", got.Summary())
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rep := makeReport("run-1", time.Now())
	require.NoError(t, s.SaveReport(ctx, rep))

	rep.Items = rep.Items[:1]
	rep.Cancelled = true
	require.NoError(t, s.SaveReport(ctx, rep))

	got, err := s.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.True(t, got.Cancelled)
}

func TestSQLiteStore_GetUnknown(t *testing.T) {
	s := newStore(t)
	_, err := s.GetReport(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Error(t, s.SaveReport(context.Background(), &bulk.Report{}))
}

func TestSQLiteStore_ListReportsNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveReport(ctx, makeReport(id, base.Add(time.Duration(i)*time.Hour))))
	}

	reps, err := s.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, "c", reps[0].ID)
	assert.Equal(t, "b", reps[1].ID)
	assert.Nil(t, reps[0].Items)
}

func TestSQLiteStore_ASINHistoryAndPrune(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveReport(ctx, makeReport("old", base)))
	require.NoError(t, s.SaveReport(ctx, makeReport("new", base.AddDate(0, 1, 0))))

	hist, err := s.ASINHistory(ctx, "B07XJ8C8F5", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].FetchedAt.After(hist[1].FetchedAt))

	n, err := s.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetReport(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	hist, err = s.ASINHistory(ctx, "B07XJ8C8F5", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
