package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"advent-calendar/internal/domain"
)

// UserProgress описывает прогресс одного пользователя.
type UserProgress struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	OpenedDays  []int     `json:"opened_days"`
	OpenedCount int       `json:"opened_count"`
	Percentage  float64   `json:"percentage"`
}

// Summary сводит прогресс всех пользователей.
type Summary struct {
	Users             []UserProgress `json:"users"`
	TotalDays         int            `json:"total_days"`
	AveragePercentage float64        `json:"average_percentage"`
	TotalOpened       int            `json:"total_opened"`
}

// Service считает прогресс пользователей для админки.
type Service struct {
	profiles  domain.ProfileRepo
	progress  domain.ProgressRepo
	totalDays int
}

func NewService(profiles domain.ProfileRepo, progress domain.ProgressRepo, totalDays int) *Service {
	return &Service{profiles: profiles, progress: progress, totalDays: totalDays}
}

// Progress собирает прогресс всех профилей; записи прогресса читаются одним запросом.
func (s *Service) Progress(ctx context.Context, session domain.Session) (Summary, error) {
	if !session.IsAdmin() {
		return Summary{}, domain.ErrForbidden
	}
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("получение профилей: %w", err)
	}
	records, err := s.progress.ListAllProgress(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("получение прогресса: %w", err)
	}
	return Summarize(profiles, records, s.totalDays), nil
}

// Summarize группирует записи прогресса по профилям.
func Summarize(profiles []domain.Profile, records []domain.ProgressRecord, totalDays int) Summary {
	byUser := make(map[uuid.UUID][]int, len(profiles))
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r.DayNumber)
	}

	sum := Summary{TotalDays: totalDays, Users: make([]UserProgress, 0, len(profiles))}
	var pctTotal float64
	for _, p := range profiles {
		days := byUser[p.ID]
		sort.Ints(days)
		if days == nil {
			days = []int{}
		}
		up := UserProgress{
			UserID:      p.ID,
			Username:    p.Username,
			OpenedDays:  days,
			OpenedCount: len(days),
			Percentage:  percentage(len(days), totalDays),
		}
		sum.Users = append(sum.Users, up)
		sum.TotalOpened += up.OpenedCount
		pctTotal += up.Percentage
	}
	if len(sum.Users) > 0 {
		sum.AveragePercentage = pctTotal / float64(len(sum.Users))
	}
	sort.SliceStable(sum.Users, func(i, j int) bool {
		return sum.Users[i].OpenedCount > sum.Users[j].OpenedCount
	})
	return sum
}

func percentage(opened, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(opened) / float64(total) * 100
}
