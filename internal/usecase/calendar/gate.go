package calendar

import (
	"time"

	"advent-calendar/internal/domain"
)

// DoorStatus — состояние двери для пользователя.
type DoorStatus string

const (
	DoorLocked    DoorStatus = "locked"
	DoorAvailable DoorStatus = "available"
	DoorOpened    DoorStatus = "opened"
)

// OutsidePolicy определяет доступность дверей вне месяца кампании.
type OutsidePolicy string

const (
	// OutsideLocked закрывает все двери вне месяца кампании.
	OutsideLocked OutsidePolicy = "locked"
	// OutsideOpen открывает все двери вне месяца кампании (для стендов).
	OutsideOpen OutsidePolicy = "open"
)

// ParseOutsidePolicy приводит строку к политике; по умолчанию всё закрыто.
func ParseOutsidePolicy(raw string) OutsidePolicy {
	if OutsidePolicy(raw) == OutsideOpen {
		return OutsideOpen
	}
	return OutsideLocked
}

// Settings описывает параметры кампании.
type Settings struct {
	TotalDays     int
	CampaignMonth time.Month
	Location      *time.Location
	Outside       OutsidePolicy
}

// Door — вычисленное состояние одной двери.
type Door struct {
	Day        int        `json:"day"`
	Status     DoorStatus `json:"status"`
	HasContent bool       `json:"has_content"`
	Clickable  bool       `json:"clickable"`
}

// Gate вычисляет доступность дверей.
type Gate struct {
	settings Settings
}

// NewGate создаёт вычислитель с дефолтами для пустых полей.
func NewGate(settings Settings) Gate {
	if settings.TotalDays <= 0 {
		settings.TotalDays = 24
	}
	if settings.CampaignMonth < time.January || settings.CampaignMonth > time.December {
		settings.CampaignMonth = time.December
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.Outside == "" {
		settings.Outside = OutsideLocked
	}
	return Gate{settings: settings}
}

// TotalDays возвращает количество дверей.
func (g Gate) TotalDays() int {
	return g.settings.TotalDays
}

// CurrentDay возвращает последний доступный день для обычного пользователя:
// 0 значит, что ничего не доступно; TotalDays значит, что доступно всё.
func (g Gate) CurrentDay(now time.Time) int {
	local := now.In(g.settings.Location)
	if local.Month() == g.settings.CampaignMonth {
		return local.Day()
	}
	if g.settings.Outside == OutsideOpen {
		return g.settings.TotalDays
	}
	return 0
}

// Available сообщает, доступна ли дверь без учёта прогресса.
func (g Gate) Available(now time.Time, role domain.UserRole, day int) bool {
	if day < 1 || day > g.settings.TotalDays {
		return false
	}
	if role == domain.UserRoleAdmin {
		return true
	}
	return day <= g.CurrentDay(now)
}

// Status вычисляет состояние одной двери. Открытая дверь остаётся открытой
// независимо от даты.
func (g Gate) Status(now time.Time, role domain.UserRole, day int, opened bool) DoorStatus {
	if opened {
		return DoorOpened
	}
	if g.Available(now, role, day) {
		return DoorAvailable
	}
	return DoorLocked
}

// Doors строит состояние всех дверей календаря. Доступная дверь без содержимого
// показывается закрытой; от будущей двери её отличает HasContent=false.
func (g Gate) Doors(now time.Time, role domain.UserRole, entries []domain.CalendarEntry, progress []domain.ProgressRecord) []Door {
	content := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		content[e.DayNumber] = struct{}{}
	}
	opened := make(map[int]struct{}, len(progress))
	for _, p := range progress {
		opened[p.DayNumber] = struct{}{}
	}
	doors := make([]Door, 0, g.settings.TotalDays)
	for day := 1; day <= g.settings.TotalDays; day++ {
		_, isOpened := opened[day]
		_, hasContent := content[day]
		status := g.Status(now, role, day, isOpened)
		if status == DoorAvailable && !hasContent {
			status = DoorLocked
		}
		doors = append(doors, Door{
			Day:        day,
			Status:     status,
			HasContent: hasContent,
			Clickable:  status == DoorAvailable,
		})
	}
	return doors
}
