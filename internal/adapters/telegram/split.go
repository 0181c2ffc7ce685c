package telegram

import (
	"strings"
	"unicode"
)

const messageLimit = 4096

// SplitMessage режет текст на части не длиннее лимита Telegram. Сначала ищет
// перевод строки, затем пробел; слово длиннее лимита режется как есть.
func SplitMessage(text string) []string {
	return splitRunes(strings.TrimSpace(text), messageLimit)
}

func splitRunes(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := lastBreak(runes[:limit+1], '\n')
		if cut <= 0 {
			cut = lastBreak(runes[:limit+1], ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		if chunk := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace); chunk != "" {
			parts = append(parts, chunk)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// lastBreak возвращает позицию последнего разделителя sep в window.
func lastBreak(window []rune, sep rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == sep {
			return i
		}
	}
	return -1
}
