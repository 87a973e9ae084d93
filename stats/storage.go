package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const monthLayout = "2006-01"

// MonthlyStats holds the analysis counters of one calendar month
type MonthlyStats struct {
	Analyses    int       `json:"analyses"`
	Failures    int       `json:"failures"`
	ScoreTotal  int       `json:"score_total"`
	LastUpdated time.Time `json:"last_updated"`
}

// AverageScore is the mean score of successful analyses
func (m MonthlyStats) AverageScore() float64 {
	if m.Analyses == 0 {
		return 0
	}
	return float64(m.ScoreTotal) / float64(m.Analyses)
}

// Storage handles persistent storage of monthly usage counters
type Storage struct {
	mutex       sync.RWMutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
	logger      *zap.Logger
	now         func() time.Time
}

// NewStorage loads <dataDir>/stats.json if present and starts the background writer
func NewStorage(dataDir string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		writeBuffer: make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		logger:      logger.With(zap.String("component", "stats_storage")),
		now:         time.Now,
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// save writes to a temp file and renames it over stats.json
func (s *Storage) save() error {
	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func (s *Storage) backgroundWriter() {
	defer close(s.stopped)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
		case <-ticker.C:
		case <-s.done:
			return
		}
		if err := s.save(); err != nil {
			s.logger.Warn("Failed to persist statistics", zap.Error(err))
		}
	}
}

func (s *Storage) currentMonth() string {
	return s.now().Format(monthLayout)
}

// CurrentMonth returns the key GetCurrentStats reads, in YYYY-MM form
func (s *Storage) CurrentMonth() string {
	return s.currentMonth()
}

// requestWrite asks the background writer for a save; a pending request is enough
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
	}
}

// update applies fn to the current month's counters. Caller must not hold the lock.
func (s *Storage) update(fn func(*MonthlyStats)) {
	month := s.currentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}

	fn(stats)
	stats.LastUpdated = s.now()

	if s.now().Sub(s.lastWrite) > time.Minute {
		s.requestWrite()
		s.lastWrite = s.now()
	}
}

// RecordAnalysis counts a successful analysis and its score
func (s *Storage) RecordAnalysis(score int) {
	s.update(func(m *MonthlyStats) {
		m.Analyses++
		m.ScoreTotal += score
	})
}

// RecordFailure counts an analysis whose fetch failed
func (s *Storage) RecordFailure() {
	s.update(func(m *MonthlyStats) {
		m.Failures++
	})
}

// GetCurrentStats returns statistics for the current month
func (s *Storage) GetCurrentStats() MonthlyStats {
	month := s.currentMonth()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[month]; exists {
		return *stats
	}
	return MonthlyStats{}
}

// Cleanup keeps the current month and the retainMonths-1 months before it
func (s *Storage) Cleanup(retainMonths int) {
	if retainMonths < 1 {
		retainMonths = 1
	}
	now := s.now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	cutoff := firstOfMonth.AddDate(0, -(retainMonths - 1), 0).Format(monthLayout)

	s.mutex.Lock()
	var removed []string
	for key := range s.stats {
		if key < cutoff {
			delete(s.stats, key)
			removed = append(removed, key)
		}
	}
	s.mutex.Unlock()

	s.requestWrite()

	s.logger.Debug("Cleaned up statistics",
		zap.String("oldest_retained", cutoff),
		zap.Strings("removed", removed))
}

// GetMonthlyStats returns statistics for a specific month
func (s *Storage) GetMonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return *stats, true
	}
	return MonthlyStats{}, false
}

// GetAllMonths returns all months that have statistics, newest first
func (s *Storage) GetAllMonths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	return months
}

// Shutdown stops the background writer and flushes counters to disk
func (s *Storage) Shutdown() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
	return s.save()
}
