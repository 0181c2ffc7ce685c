package export

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"advent-calendar/internal/domain"
)

const fileNameLayout = "2006-01-02"

// FileName возвращает имя архива для даты выгрузки.
func FileName(at time.Time) string {
	return "advent-calendar-export-" + at.Format(fileNameLayout) + ".zip"
}

// Manifest описывает оглавление архива.
type Manifest struct {
	ExportedAt   time.Time       `json:"exported_at"`
	TotalEntries int             `json:"total_entries"`
	Entries      []ManifestEntry `json:"entries"`
	FailedMedia  []string        `json:"failed_media"`
}

// ManifestEntry — краткое описание одного дня.
type ManifestEntry struct {
	DayNumber  int    `json:"day_number"`
	Title      string `json:"title"`
	TitleEn    string `json:"title_en,omitempty"`
	HasEnglish bool   `json:"has_english"`
	HasAudio   bool   `json:"has_audio"`
	ImageCount int    `json:"image_count"`
	VideoCount int    `json:"video_count"`
}

// DayText ложится в texts/day-N.json.
type DayText struct {
	DayNumber int    `json:"day_number"`
	Title     string `json:"title"`
	Story     string `json:"story"`
	TitleEn   string `json:"title_en,omitempty"`
	StoryEn   string `json:"story_en,omitempty"`
}

type mediaFile struct {
	archivePath string
	url         string
}

func manifestEntry(e domain.CalendarEntry) ManifestEntry {
	images, videos := e.MediaCounts()
	return ManifestEntry{
		DayNumber:  e.DayNumber,
		Title:      e.Title,
		TitleEn:    e.TitleEn,
		HasEnglish: e.HasEnglish(),
		HasAudio:   strings.TrimSpace(e.AudioURL) != "",
		ImageCount: images,
		VideoCount: videos,
	}
}

func dayText(e domain.CalendarEntry) DayText {
	return DayText{DayNumber: e.DayNumber, Title: e.Title, Story: e.Story, TitleEn: e.TitleEn, StoryEn: e.StoryEn}
}

func textPath(day int) string {
	return "texts/day-" + strconv.Itoa(day) + ".json"
}

// planMedia раскладывает медиа записей по папкам архива в детерминированном порядке.
func planMedia(entries []domain.CalendarEntry) []mediaFile {
	var out []mediaFile
	audio := newNamer()
	for _, e := range entries {
		dir := fmt.Sprintf("images/day-%d", e.DayNumber)
		images := newNamer()
		for _, u := range e.ImageURLs {
			out = append(out, mediaFile{archivePath: dir + "/" + images.unique(Basename(u)), url: u})
		}
		if u := strings.TrimSpace(e.AudioURL); u != "" {
			out = append(out, mediaFile{archivePath: "audio/" + audio.unique(Basename(u)), url: u})
		}
	}
	return out
}

// Basename возвращает последний сегмент пути URL без query и fragment.
func Basename(rawURL string) string {
	clean := rawURL
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	base := path.Base(strings.TrimRight(clean, "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return base
}

type namer struct {
	seen map[string]int
}

func newNamer() *namer {
	return &namer{seen: map[string]int{}}
}

// unique добавляет суффикс -2, -3 ... перед расширением, если имя уже занято в папке.
func (n *namer) unique(name string) string {
	n.seen[name]++
	count := n.seen[name]
	if count == 1 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), count, ext)
	if _, taken := n.seen[candidate]; taken {
		return n.unique(candidate)
	}
	n.seen[candidate] = 1
	return candidate
}
