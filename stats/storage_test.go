package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStorage(t *testing.T) {
	tempDir := t.TempDir()

	storage, err := NewStorage(tempDir, zap.NewNop())
	require.NoError(t, err)

	t.Run("RecordAnalysis", func(t *testing.T) {
		storage.RecordAnalysis(80)
		storage.RecordAnalysis(60)
		storage.RecordFailure()

		stats := storage.GetCurrentStats()
		assert.Equal(t, 2, stats.Analyses)
		assert.Equal(t, 1, stats.Failures)
		assert.Equal(t, 140, stats.ScoreTotal)
		assert.Equal(t, 70.0, stats.AverageScore())
		assert.False(t, stats.LastUpdated.IsZero())
	})

	t.Run("Persistence", func(t *testing.T) {
		require.NoError(t, storage.save())

		storage2, err := NewStorage(tempDir, nil)
		require.NoError(t, err)
		defer storage2.Shutdown()

		stats := storage2.GetCurrentStats()
		assert.Equal(t, 2, stats.Analyses)
		assert.Equal(t, 1, stats.Failures)
	})

	t.Run("Cleanup", func(t *testing.T) {
		now := time.Now()
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		oldMonth := firstOfMonth.AddDate(0, -2, 0).Format(monthLayout)
		previousMonth := firstOfMonth.AddDate(0, -1, 0).Format(monthLayout)

		storage.mutex.Lock()
		storage.stats[oldMonth] = &MonthlyStats{Analyses: 100}
		storage.stats[previousMonth] = &MonthlyStats{Analyses: 50}
		storage.mutex.Unlock()

		storage.Cleanup(2)
		_, exists := storage.GetMonthlyStats(oldMonth)
		assert.False(t, exists, "old stats should have been cleaned up")
		_, exists = storage.GetMonthlyStats(previousMonth)
		assert.True(t, exists, "previous month is retained")

		storage.Cleanup(1)
		_, exists = storage.GetMonthlyStats(previousMonth)
		assert.False(t, exists)
		assert.Equal(t, []string{storage.currentMonth()}, storage.GetAllMonths())
	})

	t.Run("FileSize", func(t *testing.T) {
		require.NoError(t, storage.save())

		info, err := os.Stat(filepath.Join(tempDir, "stats.json"))
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(1024))
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		before := storage.GetCurrentStats()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					storage.RecordAnalysis(1)
					storage.RecordFailure()
					storage.GetCurrentStats()
				}
			}()
		}
		wg.Wait()

		stats := storage.GetCurrentStats()
		assert.Equal(t, before.Analyses+1000, stats.Analyses)
		assert.Equal(t, before.Failures+1000, stats.Failures)
	})

	t.Run("Shutdown", func(t *testing.T) {
		storage.RecordFailure()
		want := storage.GetCurrentStats()

		require.NoError(t, storage.Shutdown())
		require.NoError(t, storage.Shutdown(), "second shutdown is a no-op flush")

		reloaded, err := NewStorage(tempDir, nil)
		require.NoError(t, err)
		defer reloaded.Shutdown()
		assert.Equal(t, want.Failures, reloaded.GetCurrentStats().Failures)
	})
}

func TestStorage_GetAllMonthsSorted(t *testing.T) {
	storage, err := NewStorage(t.TempDir(), nil)
	require.NoError(t, err)
	defer storage.Shutdown()

	storage.mutex.Lock()
	storage.stats["2024-01"] = &MonthlyStats{}
	storage.stats["2024-03"] = &MonthlyStats{}
	storage.stats["2023-12"] = &MonthlyStats{}
	storage.mutex.Unlock()

	assert.Equal(t, []string{"2024-03", "2024-01", "2023-12"}, storage.GetAllMonths())
}

func TestNewStorage_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stats.json"), []byte("{not json"), 0644))

	_, err := NewStorage(dir, nil)
	assert.Error(t, err)
}

func TestMonthlyStats_AverageScoreEmpty(t *testing.T) {
	assert.Equal(t, 0.0, MonthlyStats{Failures: 3}.AverageScore())
}
