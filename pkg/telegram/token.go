package telegram

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Callback tokens are structured strings: "namespace:action[:arg]".
// Telegram caps callback_data at 64 bytes, so arguments carrying question
// keys are truncated to a bounded prefix and resolved back against the
// archive by prefix match.

// MaxArgBytes bounds token arguments so namespace + action + separators
// always fit the transport's 64-byte callback_data limit.
const MaxArgBytes = 48

var ErrMalformedToken = errors.New("telegram: malformed callback token")

type Token struct {
	Namespace string
	Action    string
	Arg       string
}

func NewToken(namespace, action, arg string) Token {
	return Token{Namespace: namespace, Action: action, Arg: TruncateArg(arg)}
}

func (t Token) Encode() string {
	if t.Arg == "" {
		return fmt.Sprintf("%s:%s", t.Namespace, t.Action)
	}
	return fmt.Sprintf("%s:%s:%s", t.Namespace, t.Action, t.Arg)
}

// ParseToken decodes a callback token. The arg may itself contain colons
// (question prefixes are free text), so only the first two separators split.
func ParseToken(data string) (Token, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Token{}, ErrMalformedToken
	}
	t := Token{Namespace: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		if parts[2] == "" {
			return Token{}, ErrMalformedToken
		}
		t.Arg = parts[2]
	}
	return t, nil
}

// TruncateArg cuts s to at most MaxArgBytes without splitting a UTF-8 rune,
// so multibyte question keys survive the lossy encoding intact.
func TruncateArg(s string) string {
	if len(s) <= MaxArgBytes {
		return s
	}
	cut := MaxArgBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
