package catalog

import (
	"time"

	"librarydesk/internal/domain"
)

// DefaultRecentWindow is how far back a publication date counts as recent.
const DefaultRecentWindow = 30 * 24 * time.Hour

// ComputeStats derives the dashboard metrics from a snapshot. A book is
// recent when its publication date falls on or after the day of now-window;
// unparseable dates never count.
func ComputeStats(snap domain.Snapshot, now time.Time, window time.Duration) domain.LibraryStats {
	stats := domain.LibraryStats{
		TotalBooks:      len(snap.Books),
		TotalAuthors:    len(snap.Authors),
		TotalCategories: len(snap.Categories),
	}

	cutoff := now.Add(-window).UTC().Truncate(24 * time.Hour)
	for _, b := range snap.Books {
		stats.TotalValue += b.Price
		if t, ok := ParseDate(b.PublicationDate); ok && !t.Before(cutoff) {
			stats.RecentBooks++
		}
	}
	if stats.TotalBooks > 0 {
		stats.AveragePrice = stats.TotalValue / float64(stats.TotalBooks)
	}
	return stats
}
