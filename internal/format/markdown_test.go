package format

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestUTF16Len(t *testing.T) {
	tests := map[string]int{
		"":      0,
		"abc":   3,
		"日程":    2,
		"🔴 Gym": 6,
		"é":     1,
		"🟣🟢":    4,
	}
	for in, want := range tests {
		if got := UTF16Len(in); got != want {
			t.Errorf("UTF16Len(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		text     string
		entities []tgbotapi.MessageEntity
	}{
		{
			name: "plain",
			in:   "nothing_to_see *here*",
			text: "nothing_to_see *here*",
		},
		{
			name:     "bold and code",
			in:       "**Today**\n🔴 09:00 AM  Standup  `evt_1`",
			text:     "Today\n🔴 09:00 AM  Standup  evt_1",
			entities: []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 5}, {Type: "code", Offset: 28, Length: 5}},
		},
		{
			name:     "code after bold keeps offsets",
			in:       "`a` **b**",
			text:     "a b",
			entities: []tgbotapi.MessageEntity{{Type: "code", Offset: 0, Length: 1}, {Type: "bold", Offset: 2, Length: 1}},
		},
		{
			name:     "pre block",
			in:       "**June 2024**\n```\nMo Tu\n 1  2\n```",
			text:     "June 2024\nMo Tu\n 1  2",
			entities: []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 9}, {Type: "pre", Offset: 10, Length: 11}},
		},
		{
			name:     "markers inside code are literal",
			in:       "`**x**`",
			text:     "**x**",
			entities: []tgbotapi.MessageEntity{{Type: "code", Offset: 0, Length: 5}},
		},
		{
			name: "unclosed",
			in:   "2 ** 3",
			text: "2 ** 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMarkdown(tt.in)
			if got.Text != tt.text {
				t.Errorf("text = %q, want %q", got.Text, tt.text)
			}
			if len(got.Entities) != len(tt.entities) {
				t.Fatalf("entities = %+v, want %+v", got.Entities, tt.entities)
			}
			for i, e := range tt.entities {
				g := got.Entities[i]
				if g.Type != e.Type || g.Offset != e.Offset || g.Length != e.Length {
					t.Errorf("entity %d = %+v, want %+v", i, g, e)
				}
			}
		})
	}
}
