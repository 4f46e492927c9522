package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish   locale = "en"
	localeIcelandic locale = "is"
)

type messages struct {
	listening  string
	querying   string
	answer     string
	errorTitle string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "is") {
		return localeIcelandic
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeIcelandic:
		return messages{
			listening:  "Hlusta…",
			querying:   "Hugsa…",
			answer:     "Svar",
			errorTitle: "Villa",
			errorText:  "Villa í talgreiningu",
		}
	default:
		return messages{
			listening:  "Listening…",
			querying:   "Thinking…",
			answer:     "Answer",
			errorTitle: "Error",
			errorText:  "Speech recognition error",
		}
	}
}
