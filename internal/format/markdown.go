// Package format turns the small Markdown subset used in bot replies into
// plain text plus Telegram message entities.
package format

import (
	"sort"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len calculates the UTF-16 length of a string.
// Telegram measures entity offsets and lengths in UTF-16 code units.
func UTF16Len(s string) int {
	length := 0
	for _, r := range s {
		if r >= 0x10000 {
			length += 2
		} else {
			length++
		}
	}
	return length
}

type marker struct {
	open   string
	entity string
}

// Longest first so ``` wins over `.
var markers = []marker{
	{"```", "pre"},
	{"**", "bold"},
	{"`", "code"},
}

// ParseMarkdown converts **bold**, `code` and ```pre``` spans. Markers inside
// code spans are literal. Unclosed markers are kept as text.
// Underscores and single asterisks are left alone since event titles and ids
// often contain them.
func ParseMarkdown(text string) ParseResult {
	var (
		out      strings.Builder
		entities []tgbotapi.MessageEntity
		offset   int
	)

	for i := 0; i < len(text); {
		m, ok := markerAt(text, i)
		if !ok {
			r, size := utf8.DecodeRuneInString(text[i:])
			out.WriteRune(r)
			offset += UTF16Len(string(r))
			i += size
			continue
		}

		start := i + len(m.open)
		end := strings.Index(text[start:], m.open)
		if end <= 0 {
			out.WriteString(m.open)
			offset += len(m.open)
			i = start
			continue
		}
		inner := text[start : start+end]
		if m.entity == "pre" {
			// Drop the newline right after the fence and before the closing one.
			inner = strings.TrimPrefix(inner, "\n")
			inner = strings.TrimSuffix(inner, "\n")
		}

		n := UTF16Len(inner)
		if n > 0 {
			entities = append(entities, tgbotapi.MessageEntity{Type: m.entity, Offset: offset, Length: n})
		}
		out.WriteString(inner)
		offset += n
		i = start + end + len(m.open)
	}

	// Telegram requires entities ordered by offset
	sort.SliceStable(entities, func(a, b int) bool { return entities[a].Offset < entities[b].Offset })

	return ParseResult{
		Text:     strings.TrimRight(out.String(), " \n"),
		Entities: entities,
	}
}

func markerAt(text string, i int) (marker, bool) {
	for _, m := range markers {
		if strings.HasPrefix(text[i:], m.open) {
			return m, true
		}
	}
	return marker{}, false
}
