package services

import (
	"math"
	"sort"

	"github.com/joycompass/joycompass-backend/internal/models"
)

// Trend labels for the happiness overview.
const (
	TrendNotEnoughData = "Not enough data"
	TrendUpward        = "Trending upward"
	TrendDownward      = "Trending downward"
	TrendStable        = "Stable"
)

// HistoryPoint is one point of the happiness history chart.
type HistoryPoint struct {
	Date      string `json:"date"`
	Happiness int    `json:"happiness"`
}

// HappinessStats is the dashboard overview: entry count, average rating
// (one decimal), extremes, a trend label and the last 14 entries as chart
// points in ascending date order.
type HappinessStats struct {
	Count   int            `json:"count"`
	Average float64        `json:"average"`
	Highest int            `json:"highest"`
	Lowest  int            `json:"lowest"`
	Trend   string         `json:"trend"`
	History []HistoryPoint `json:"history"`
}

// ComputeStats derives the happiness overview from a user's entries.
// The trend compares the mean of the 7 most recent entries against the
// overall mean: more than 0.5 above is upward, more than 0.5 below is
// downward, anything else is stable. Fewer than 3 entries is not enough
// data for a trend.
func ComputeStats(entries []models.Entry) HappinessStats {
	stats := HappinessStats{
		Trend:   TrendNotEnoughData,
		History: []HistoryPoint{},
	}
	if len(entries) == 0 {
		return stats
	}

	stats.Count = len(entries)

	sum := 0
	stats.Highest = entries[0].HappinessRating
	stats.Lowest = entries[0].HappinessRating
	for _, e := range entries {
		sum += e.HappinessRating
		if e.HappinessRating > stats.Highest {
			stats.Highest = e.HappinessRating
		}
		if e.HappinessRating < stats.Lowest {
			stats.Lowest = e.HappinessRating
		}
	}
	stats.Average = math.Round(float64(sum)/float64(len(entries))*10) / 10

	// Ascending by date for the chart, descending for the trend window.
	ascending := make([]models.Entry, len(entries))
	copy(ascending, entries)
	sort.SliceStable(ascending, func(i, j int) bool {
		return ascending[i].EntryDate < ascending[j].EntryDate
	})

	chartEntries := ascending
	if len(chartEntries) > 14 {
		chartEntries = chartEntries[len(chartEntries)-14:]
	}
	for _, e := range chartEntries {
		stats.History = append(stats.History, HistoryPoint{
			Date:      e.EntryDate,
			Happiness: e.HappinessRating,
		})
	}

	if len(entries) >= 3 {
		recent := ascending
		if len(recent) > 7 {
			recent = recent[len(recent)-7:]
		}
		recentSum := 0
		for _, e := range recent {
			recentSum += e.HappinessRating
		}
		recentAvg := float64(recentSum) / float64(len(recent))

		switch {
		case recentAvg > stats.Average+0.5:
			stats.Trend = TrendUpward
		case recentAvg < stats.Average-0.5:
			stats.Trend = TrendDownward
		default:
			stats.Trend = TrendStable
		}
	}

	return stats
}

// StatsCacheKey returns the Redis cache key for a user's dashboard stats.
func StatsCacheKey(userID string) string {
	return "stats:" + userID
}
