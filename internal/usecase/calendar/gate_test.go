package calendar

import (
	"testing"
	"time"

	"advent-calendar/internal/domain"
)

func testGate(policy OutsidePolicy) Gate {
	return NewGate(Settings{TotalDays: 24, CampaignMonth: time.December, Location: time.UTC, Outside: policy})
}

func december(day int) time.Time {
	return time.Date(2025, time.December, day, 10, 0, 0, 0, time.UTC)
}

func entriesFor(days ...int) []domain.CalendarEntry {
	out := make([]domain.CalendarEntry, 0, len(days))
	for _, d := range days {
		out = append(out, domain.CalendarEntry{DayNumber: d, Title: "t", Story: "s"})
	}
	return out
}

func TestStatusOpenedOverridesLock(t *testing.T) {
	gate := testGate(OutsideLocked)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	for day := 1; day <= gate.TotalDays(); day++ {
		if got := gate.Status(now, domain.UserRoleUser, day, true); got != DoorOpened {
			t.Fatalf("день %d: ожидали opened, получили %s", day, got)
		}
	}
}

func TestStatusByDate(t *testing.T) {
	gate := testGate(OutsideLocked)
	tests := []struct {
		name string
		now  time.Time
		role domain.UserRole
		day  int
		want DoorStatus
	}{
		{name: "today", now: december(5), role: domain.UserRoleUser, day: 5, want: DoorAvailable},
		{name: "past", now: december(5), role: domain.UserRoleUser, day: 1, want: DoorAvailable},
		{name: "future", now: december(5), role: domain.UserRoleUser, day: 6, want: DoorLocked},
		{name: "admin future", now: december(5), role: domain.UserRoleAdmin, day: 24, want: DoorAvailable},
		{name: "out of range", now: december(30), role: domain.UserRoleAdmin, day: 25, want: DoorLocked},
		{name: "november locked", now: time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC), role: domain.UserRoleUser, day: 1, want: DoorLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.Status(tt.now, tt.role, tt.day, false); got != tt.want {
				t.Fatalf("Status(day=%d) = %s, want %s", tt.day, got, tt.want)
			}
		})
	}
}

func TestOutsidePolicyOpen(t *testing.T) {
	gate := testGate(OutsideOpen)
	now := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	if gate.CurrentDay(now) != 24 {
		t.Fatalf("ожидали все двери открытыми вне кампании, получили %d", gate.CurrentDay(now))
	}
	if ParseOutsidePolicy("whatever") != OutsideLocked {
		t.Fatal("неизвестная политика должна закрывать двери")
	}
}

func TestCurrentDayUsesLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 60*60)
	gate := NewGate(Settings{TotalDays: 24, CampaignMonth: time.December, Location: berlin})
	// 30 ноября 23:30 UTC — уже 1 декабря по Берлину.
	now := time.Date(2025, time.November, 30, 23, 30, 0, 0, time.UTC)
	if got := gate.CurrentDay(now); got != 1 {
		t.Fatalf("ожидали 1 декабря в зоне кампании, получили %d", got)
	}
}

func TestDoorsMissingContentIsDistinctFromFuture(t *testing.T) {
	gate := testGate(OutsideLocked)
	doors := gate.Doors(december(10), domain.UserRoleUser, entriesFor(1, 2, 3, 4, 12), nil)
	if len(doors) != 24 {
		t.Fatalf("ожидали 24 двери, получили %d", len(doors))
	}
	empty := doors[4] // день 5 без записи
	if empty.Status != DoorLocked || empty.HasContent || empty.Clickable {
		t.Fatalf("день 5 без записи должен быть закрыт и некликабелен: %+v", empty)
	}
	future := doors[11] // день 12 с записью, но в будущем
	if future.Status != DoorLocked || !future.HasContent || future.Clickable {
		t.Fatalf("день 12 должен быть закрыт, но с содержимым: %+v", future)
	}
	ready := doors[3]
	if ready.Status != DoorAvailable || !ready.Clickable {
		t.Fatalf("день 4 должен быть доступен: %+v", ready)
	}
}

func TestDoorsOpenedNotClickable(t *testing.T) {
	gate := testGate(OutsideLocked)
	progress := []domain.ProgressRecord{{DayNumber: 2}}
	doors := gate.Doors(december(10), domain.UserRoleUser, entriesFor(1, 2), progress)
	if doors[1].Status != DoorOpened {
		t.Fatalf("ожидали opened, получили %s", doors[1].Status)
	}
	if doors[1].Clickable {
		t.Fatal("открытая дверь не должна быть кликабельной")
	}
}
