package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, length)
		}
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatal("первая часть должна закончиться на границе абзаца")
	}
	if !strings.HasPrefix(parts[1], "b") || !strings.HasSuffix(parts[1], strings.Repeat("c", 500)) {
		t.Fatal("вторая часть должна содержать остаток целиком")
	}
}

func TestSplitMessageFallsBackToSpaces(t *testing.T) {
	word := strings.Repeat("ü", 100)
	text := strings.TrimSpace(strings.Repeat(word+" ", 60))

	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for _, part := range parts {
		if strings.HasPrefix(part, " ") || strings.HasSuffix(part, " ") {
			t.Fatal("части не должны начинаться или заканчиваться пробелом")
		}
		for _, w := range strings.Fields(part) {
			if w != word {
				t.Fatal("слова не должны разрываться")
			}
		}
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", messageLimit*2+10))
	if len(parts) != 3 || len(parts[0]) != messageLimit || len(parts[2]) != 10 {
		t.Fatalf("неожиданное разбиение: %d частей", len(parts))
	}
}

func TestSplitMessageShortAndEmpty(t *testing.T) {
	if parts := SplitMessage("hallo welt"); len(parts) != 1 || parts[0] != "hallo welt" {
		t.Fatalf("неожиданный результат: %v", parts)
	}
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой текст не должен давать частей, получили %d", len(parts))
	}
}
