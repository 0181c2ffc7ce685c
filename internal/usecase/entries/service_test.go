package entries

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
)

type memoryRepo struct {
	entries     map[uuid.UUID]domain.CalendarEntry
	reassignErr error
	reassigns   int
}

func newMemoryRepo(days ...int) *memoryRepo {
	r := &memoryRepo{entries: map[uuid.UUID]domain.CalendarEntry{}}
	for _, d := range days {
		id := uuid.New()
		r.entries[id] = domain.CalendarEntry{ID: id, DayNumber: d, Title: "Tag", Story: "Text"}
	}
	return r
}

func (r *memoryRepo) ListEntries(context.Context) ([]domain.CalendarEntry, error) {
	out := make([]domain.CalendarEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out, nil
}

func (r *memoryRepo) GetEntry(_ context.Context, id uuid.UUID) (domain.CalendarEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return domain.CalendarEntry{}, domain.ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) GetEntryByDay(_ context.Context, day int) (domain.CalendarEntry, error) {
	for _, e := range r.entries {
		if e.DayNumber == day {
			return e, nil
		}
	}
	return domain.CalendarEntry{}, domain.ErrEntryNotFound
}

func (r *memoryRepo) CreateEntry(ctx context.Context, in domain.EntryInput) (domain.CalendarEntry, error) {
	if _, err := r.GetEntryByDay(ctx, in.DayNumber); err == nil {
		return domain.CalendarEntry{}, domain.ErrDayTaken
	}
	e := domain.CalendarEntry{ID: uuid.New(), DayNumber: in.DayNumber, Title: in.Title, Story: in.Story, ImageURLs: in.ImageURLs}
	r.entries[e.ID] = e
	return e, nil
}

func (r *memoryRepo) UpdateEntry(_ context.Context, id uuid.UUID, in domain.EntryInput) (domain.CalendarEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return domain.CalendarEntry{}, domain.ErrEntryNotFound
	}
	e.DayNumber = in.DayNumber
	e.Title = in.Title
	e.Story = in.Story
	e.TitleEn = in.TitleEn
	e.StoryEn = in.StoryEn
	e.ImageURLs = in.ImageURLs
	r.entries[id] = e
	return e, nil
}

func (r *memoryRepo) DeleteEntry(_ context.Context, id uuid.UUID) error {
	delete(r.entries, id)
	return nil
}

// ReassignDays применяет назначения целиком и проверяет уникальность только в конце,
// как отложенное ограничение в транзакции.
func (r *memoryRepo) ReassignDays(_ context.Context, assignments []domain.DayAssignment) error {
	r.reassigns++
	if r.reassignErr != nil {
		return r.reassignErr
	}
	next := make(map[uuid.UUID]domain.CalendarEntry, len(r.entries))
	for id, e := range r.entries {
		next[id] = e
	}
	for _, a := range assignments {
		e, ok := next[a.EntryID]
		if !ok {
			return domain.ErrEntryNotFound
		}
		e.DayNumber = a.DayNumber
		next[a.EntryID] = e
	}
	seen := map[int]struct{}{}
	for _, e := range next {
		if _, dup := seen[e.DayNumber]; dup {
			return domain.ErrDayTaken
		}
		seen[e.DayNumber] = struct{}{}
	}
	r.entries = next
	return nil
}

type fakeLocker struct {
	busy  bool
	calls int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(), error) {
	l.calls++
	if l.busy {
		return nil, domain.ErrBusy
	}
	return func() {}, nil
}

type fakeTranslator struct {
	resp domain.Translation
	err  error
}

func (f *fakeTranslator) Translate(context.Context, domain.TranslationRequest) (domain.Translation, error) {
	return f.resp, f.err
}

func newService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, 24, zerolog.Nop())
}

func dayNumbers(list []domain.CalendarEntry) []int {
	out := make([]int, 0, len(list))
	for _, e := range list {
		out = append(out, e.DayNumber)
	}
	return out
}

func entryIDs(list []domain.CalendarEntry) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}

func TestMovePreservesDaySet(t *testing.T) {
	for from := 0; from < 4; from++ {
		for to := 0; to < 4; to++ {
			repo := newMemoryRepo(1, 2, 3, 4)
			svc := newService(repo)
			before, _ := repo.ListEntries(context.Background())
			moved := before[from].ID

			after, err := svc.Move(context.Background(), moved, to)
			if err != nil {
				t.Fatalf("move %d->%d: не ожидали ошибку: %v", from, to, err)
			}
			days := dayNumbers(after)
			if len(days) != 4 || days[0] != 1 || days[1] != 2 || days[2] != 3 || days[3] != 4 {
				t.Fatalf("move %d->%d: набор дней нарушен: %v", from, to, days)
			}
			if after[to].ID != moved {
				t.Fatalf("move %d->%d: запись не оказалась на позиции %d", from, to, to)
			}
		}
	}
}

func TestMoveLastToFirst(t *testing.T) {
	repo := newMemoryRepo(1, 2, 3, 4)
	svc := newService(repo)
	before, _ := repo.ListEntries(context.Background())
	ids := entryIDs(before)

	after, err := svc.Move(context.Background(), ids[3], 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := []uuid.UUID{ids[3], ids[0], ids[1], ids[2]}
	for i, id := range entryIDs(after) {
		if id != want[i] {
			t.Fatalf("позиция %d: неожиданный порядок", i)
		}
	}
	for _, e := range after {
		if e.DayNumber == 9999 {
			t.Fatal("служебное значение дня не должно оставаться в хранилище")
		}
	}
}

func TestMoveKeepsSparseDaySet(t *testing.T) {
	repo := newMemoryRepo(2, 5, 9)
	svc := newService(repo)
	before, _ := repo.ListEntries(context.Background())

	after, err := svc.Move(context.Background(), before[0].ID, 2)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	days := dayNumbers(after)
	if days[0] != 2 || days[1] != 5 || days[2] != 9 {
		t.Fatalf("ожидали тот же набор дней {2,5,9}, получили %v", days)
	}
	if after[2].ID != before[0].ID {
		t.Fatal("запись должна оказаться последней")
	}
}

func TestMoveStepSwapsNeighbours(t *testing.T) {
	repo := newMemoryRepo(1, 2, 3)
	svc := newService(repo)
	before, _ := repo.ListEntries(context.Background())

	after, err := svc.MoveStep(context.Background(), before[1].ID, DirectionUp)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if after[0].ID != before[1].ID || after[1].ID != before[0].ID || after[2].ID != before[2].ID {
		t.Fatal("ожидали обмен первой и второй записи")
	}
	if repo.reassigns != 1 {
		t.Fatalf("ожидали одну атомарную запись, получили %d", repo.reassigns)
	}
}

func TestMoveStepAtEdgeIsNoop(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	svc := newService(repo)
	before, _ := repo.ListEntries(context.Background())

	if _, err := svc.MoveStep(context.Background(), before[0].ID, DirectionUp); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.reassigns != 0 {
		t.Fatal("перемещение за край не должно писать в хранилище")
	}
}

func TestReorderFailureReturnsAuthoritativeOrder(t *testing.T) {
	repo := newMemoryRepo(1, 2, 3)
	repo.reassignErr = errors.New("connection reset")
	svc := newService(repo)
	before, _ := repo.ListEntries(context.Background())

	after, err := svc.Move(context.Background(), before[2].ID, 0)
	if err == nil {
		t.Fatal("ожидали ошибку перестановки")
	}
	if len(after) != 3 || after[0].ID != before[0].ID {
		t.Fatal("после ошибки должен вернуться порядок из хранилища")
	}
}

func TestReorderBusy(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	locker := &fakeLocker{busy: true}
	svc := NewService(repo, nil, locker, nil, 24, zerolog.Nop())
	before, _ := repo.ListEntries(context.Background())

	_, err := svc.Move(context.Background(), before[0].ID, 1)
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("ожидали ErrBusy, получили %v", err)
	}
}

func TestCreateValidates(t *testing.T) {
	svc := newService(newMemoryRepo())
	cases := []domain.EntryInput{
		{DayNumber: 0, Title: "a", Story: "b"},
		{DayNumber: 25, Title: "a", Story: "b"},
		{DayNumber: 1, Title: "  ", Story: "b"},
		{DayNumber: 1, Title: "a", Story: ""},
	}
	for _, in := range cases {
		if _, err := svc.Create(context.Background(), in); err == nil {
			t.Fatalf("ожидали ошибку валидации для %+v", in)
		}
	}
	entry, err := svc.Create(context.Background(), domain.EntryInput{DayNumber: 3, Title: " Titel ", Story: "Story", ImageURLs: []string{"", " https://x/a.jpg "}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if entry.Title != "Titel" || len(entry.ImageURLs) != 1 || entry.ImageURLs[0] != "https://x/a.jpg" {
		t.Fatalf("ожидали нормализованные поля: %+v", entry)
	}
}

func TestUpdateKeepsDayNumber(t *testing.T) {
	repo := newMemoryRepo(4)
	svc := newService(repo)
	list, _ := repo.ListEntries(context.Background())

	updated, err := svc.Update(context.Background(), list[0].ID, domain.EntryInput{DayNumber: 7, Title: "Neu", Story: "Neu"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if updated.DayNumber != 4 {
		t.Fatalf("номер дня не должен меняться при редактировании, получили %d", updated.DayNumber)
	}
}

func TestTranslateSurfacesErrors(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeTranslator{err: domain.ErrRateLimited}, nil, nil, 24, zerolog.Nop())
	if _, err := svc.Translate(context.Background(), domain.TranslationRequest{Title: "a", Story: "b"}); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("ожидали ErrRateLimited, получили %v", err)
	}
	if _, err := svc.Translate(context.Background(), domain.TranslationRequest{Title: "", Story: "b"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ожидали ErrValidation, получили %v", err)
	}
	noTranslator := newService(repo)
	if _, err := noTranslator.Translate(context.Background(), domain.TranslationRequest{Title: "a", Story: "b"}); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("ожидали ErrUpstream, получили %v", err)
	}
}
