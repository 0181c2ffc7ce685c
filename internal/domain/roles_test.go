package domain

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want UserRole
	}{
		{name: "admin", raw: "admin", want: UserRoleAdmin},
		{name: "admin mixed case", raw: " Admin ", want: UserRoleAdmin},
		{name: "user", raw: "user", want: UserRoleUser},
		{name: "empty", raw: "", want: UserRoleUser},
		{name: "unknown", raw: "superuser", want: UserRoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRole(tt.raw); got != tt.want {
				t.Fatalf("ParseRole(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSessionCanModify(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	if !(Session{UserID: owner, Role: UserRoleUser}).CanModify(owner) {
		t.Fatal("владелец должен иметь доступ к своей записи")
	}
	if (Session{UserID: other, Role: UserRoleUser}).CanModify(owner) {
		t.Fatal("чужой пользователь не должен иметь доступ")
	}
	if !(Session{UserID: other, Role: UserRoleAdmin}).CanModify(owner) {
		t.Fatal("администратор должен иметь доступ")
	}
}

func TestSessionContextRoundTrip(t *testing.T) {
	s := Session{UserID: uuid.New(), Role: UserRoleAdmin}
	got, ok := SessionFrom(WithSession(context.Background(), s))
	if !ok || got != s {
		t.Fatalf("ожидали сессию %+v, получили %+v (ok=%v)", s, got, ok)
	}
	if _, ok := SessionFrom(context.Background()); ok {
		t.Fatal("не ожидали сессию в пустом контексте")
	}
}

func TestMediaKindFromURL(t *testing.T) {
	cases := map[string]MediaKind{
		"https://cdn.example.com/day-1/a.JPG":        MediaKindImage,
		"https://cdn.example.com/day-1/clip.mp4?x=1": MediaKindVideo,
		"https://cdn.example.com/day-1/clip.mov":     MediaKindVideo,
		"https://cdn.example.com/day-1/voice.m4a":    MediaKindAudio,
		"https://cdn.example.com/day-1/noext":        MediaKindImage,
	}
	for input, want := range cases {
		if got := MediaKindFromURL(input); got != want {
			t.Fatalf("MediaKindFromURL(%s) = %s, want %s", input, got, want)
		}
	}
}

func TestCommentUnread(t *testing.T) {
	reply := "спасибо!"
	blank := "  "
	if (Comment{}).Unread() {
		t.Fatal("комментарий без ответа не может быть непрочитанным")
	}
	if !(Comment{ReplyText: &reply}).Unread() {
		t.Fatal("ответ без отметки о прочтении должен быть непрочитанным")
	}
	if (Comment{ReplyText: &reply, IsRead: true}).Unread() {
		t.Fatal("прочитанный ответ не должен считаться непрочитанным")
	}
	if (Comment{ReplyText: &blank}).Unread() {
		t.Fatal("пустой ответ не считается ответом")
	}
}
