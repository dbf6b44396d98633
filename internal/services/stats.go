package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/repository"
)

// Stats computes platform-wide user statistics by walking the user index.
// Fine for the user counts this service sees; revisit if the index grows
// past what one scan can handle.
type Stats struct {
	users *repository.Users
	log   zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewStats(users *repository.Users, log zerolog.Logger) *Stats {
	return &Stats{
		users: users,
		log:   log.With().Str("component", "stats").Logger(),
		now:   time.Now,
	}
}

func (s *Stats) Platform(ctx context.Context) (*models.PlatformStats, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	stats := &models.PlatformStats{Total: len(users)}
	for _, u := range users {
		if u.CreatedAt.After(dayAgo) {
			stats.NewUsers.Today++
		}
		if u.CreatedAt.After(weekAgo) {
			stats.NewUsers.ThisWeek++
		}
		if u.CreatedAt.After(monthAgo) {
			stats.NewUsers.ThisMonth++
		}
		if u.LastLoginAt.After(weekAgo) {
			stats.Active.Last7Days++
		}
	}

	stats.Growth = models.GrowthRates{
		Daily:   rate(stats.NewUsers.Today, stats.Total),
		Weekly:  rate(stats.NewUsers.ThisWeek, stats.Total),
		Monthly: rate(stats.NewUsers.ThisMonth, stats.Total),
	}
	stats.Engagement = models.EngagementRates{
		ActiveRate: rate(stats.Active.Last7Days, stats.Total),
	}
	return stats, nil
}

func rate(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}
