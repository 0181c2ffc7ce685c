package entries

import (
	"sort"

	"advent-calendar/internal/domain"
)

// SwapAssignments обменивает дни двух записей.
func SwapAssignments(a, b domain.CalendarEntry) []domain.DayAssignment {
	return []domain.DayAssignment{
		{EntryID: a.ID, DayNumber: b.DayNumber},
		{EntryID: b.ID, DayNumber: a.DayNumber},
	}
}

// MoveIndex возвращает новый порядок после переноса элемента from на позицию to.
// Исходный срез не меняется.
func MoveIndex(list []domain.CalendarEntry, from, to int) []domain.CalendarEntry {
	out := make([]domain.CalendarEntry, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	moved := list[from]
	out = append(out, domain.CalendarEntry{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// ReindexAssignments раздаёт записям в порядке ordered номера дней из исходного
// списка по возрастанию. Набор номеров сохраняется; в результат попадают только
// изменившиеся записи.
func ReindexAssignments(original, ordered []domain.CalendarEntry) []domain.DayAssignment {
	days := make([]int, 0, len(original))
	for _, e := range original {
		days = append(days, e.DayNumber)
	}
	sort.Ints(days)

	var out []domain.DayAssignment
	for i, e := range ordered {
		if e.DayNumber == days[i] {
			continue
		}
		out = append(out, domain.DayAssignment{EntryID: e.ID, DayNumber: days[i]})
	}
	return out
}
