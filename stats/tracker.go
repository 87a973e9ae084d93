package stats

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// popularHostsLimit is how many hosts dev mode statistics list
const popularHostsLimit = 5

// Statistics is the public view served by /api/statistics
type Statistics struct {
	UniqueVisitors24h int         `json:"uniqueVisitors24h"`
	TotalRequests     int         `json:"totalRequests"`
	ErrorRate         float64     `json:"errorRate"`
	AverageLoadTime   float64     `json:"averageLoadTime"`
	PopularHosts      []HostCount `json:"popularHosts,omitempty"`
}

type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// trackerState is the persisted form of a Tracker
type trackerState struct {
	Visitors         map[uint64]time.Time `json:"visitors"`
	AnalysisRequests int                  `json:"analysisRequests"`
	ErrorCount       int                  `json:"errorCount"`
	PopularHosts     map[string]int       `json:"popularHosts"`
	TotalLoadTimeMs  float64              `json:"totalLoadTimeMs"`
	LastPersisted    time.Time            `json:"lastPersisted"`
}

// Tracker collects request statistics. Visitor IPs are only kept as hashes.
type Tracker struct {
	mutex    sync.RWMutex
	saveMu   sync.Mutex // one writer of the temp file at a time
	state    trackerState
	filePath string
	logger   *zap.Logger
	now      func() time.Time
}

// NewTracker creates a tracker persisted to <dataDir>/statistics.json.
// An unreadable file is logged and the tracker starts empty.
func NewTracker(dataDir string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		state: trackerState{
			Visitors:     make(map[uint64]time.Time),
			PopularHosts: make(map[string]int),
		},
		filePath: filepath.Join(dataDir, "statistics.json"),
		logger:   logger.With(zap.String("component", "stats_tracker")),
		now:      time.Now,
	}

	if err := t.Load(); err != nil {
		t.logger.Warn("Could not load existing statistics", zap.Error(err))
	}
	return t
}

// TrackVisitor records a visit from ip
func (t *Tracker) TrackVisitor(ip string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.state.Visitors[xxhash.Sum64String(ip)] = t.now()
}

// TrackAnalysis records one analysis request and returns the running total
func (t *Tracker) TrackAnalysis(target string, loadTime time.Duration, failed bool) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.state.AnalysisRequests++
	if host := analyzedHost(target); host != "" {
		t.state.PopularHosts[host]++
	}
	if failed {
		t.state.ErrorCount++
	}
	t.state.TotalLoadTimeMs += float64(loadTime.Microseconds()) / 1000

	return t.state.AnalysisRequests
}

// analyzedHost reduces a URL to its host; local and unparsable targets are not tracked
func analyzedHost(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return ""
	}
	return host
}

// Snapshot returns the current statistics. Popular hosts are only
// included in dev mode.
func (t *Tracker) Snapshot(devMode bool) Statistics {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	s := Statistics{
		UniqueVisitors24h: t.uniqueVisitors(24 * time.Hour),
		TotalRequests:     t.state.AnalysisRequests,
	}
	if t.state.AnalysisRequests > 0 {
		s.ErrorRate = float64(t.state.ErrorCount) / float64(t.state.AnalysisRequests) * 100
		s.AverageLoadTime = t.state.TotalLoadTimeMs / float64(t.state.AnalysisRequests)
	}
	if devMode {
		s.PopularHosts = t.popularHosts(popularHostsLimit)
	}
	return s
}

// uniqueVisitors counts visitors seen within window. Caller holds the read lock.
func (t *Tracker) uniqueVisitors(window time.Duration) int {
	cutoff := t.now().Add(-window)
	count := 0
	for _, lastVisit := range t.state.Visitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

// popularHosts returns the n most analyzed hosts. Caller holds the read lock.
func (t *Tracker) popularHosts(n int) []HostCount {
	hosts := make([]HostCount, 0, len(t.state.PopularHosts))
	for host, count := range t.state.PopularHosts {
		hosts = append(hosts, HostCount{Host: host, Count: count})
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Count != hosts[j].Count {
			return hosts[i].Count > hosts[j].Count
		}
		return hosts[i].Host < hosts[j].Host
	})
	if len(hosts) > n {
		hosts = hosts[:n]
	}
	return hosts
}

// Save persists the tracker, dropping visitors older than a day
func (t *Tracker) Save() error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mutex.Lock()
	cutoff := t.now().Add(-24 * time.Hour)
	for hash, lastVisit := range t.state.Visitors {
		if lastVisit.Before(cutoff) {
			delete(t.state.Visitors, hash)
		}
	}
	t.state.LastPersisted = t.now()
	data, err := json.Marshal(t.state)
	t.mutex.Unlock()

	if err != nil {
		return fmt.Errorf("could not encode statistics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.filePath), 0755); err != nil {
		return fmt.Errorf("could not create statistics directory: %w", err)
	}

	tempFile := t.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("could not write statistics file: %w", err)
	}
	if err := os.Rename(tempFile, t.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("could not rename statistics file: %w", err)
	}
	return nil
}

// Load reads a previously saved tracker. A missing file is not an error.
func (t *Tracker) Load() error {
	data, err := os.ReadFile(t.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not open statistics file: %w", err)
	}

	var state trackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("could not decode statistics: %w", err)
	}
	if state.Visitors == nil {
		state.Visitors = make(map[uint64]time.Time)
	}
	if state.PopularHosts == nil {
		state.PopularHosts = make(map[string]int)
	}

	t.mutex.Lock()
	t.state = state
	t.mutex.Unlock()
	return nil
}
