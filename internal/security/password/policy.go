package password

import (
	"errors"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MinLen = 8

var ErrTooShort = errors.New("weak_password.length")

// Warning is returned alongside an accepted but guessable password.
type Warning struct {
	Score       int      `json:"score"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// Validate trims pwd and rejects it only when shorter than MinLen.
// Anything scoring below 3 is accepted with a Warning. hints are
// user-specific strings (username, email) that weaken a password
// containing them.
func Validate(pwd string, hints ...string) (string, *Warning, error) {
	trimmed := strings.TrimSpace(pwd)
	if utf8.RuneCountInString(trimmed) < MinLen {
		return trimmed, nil, ErrTooShort
	}
	if s := score(trimmed, hints); s < 3 {
		return trimmed, warningFor(s), nil
	}
	return trimmed, nil, nil
}

// score maps an estimated entropy in bits onto 0..4.
func score(pwd string, hints []string) int {
	bits := entropyBits(pwd)
	lower := strings.ToLower(pwd)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if len(h) >= 3 && strings.Contains(lower, h) {
			bits -= float64(utf8.RuneCountInString(h)) * bitsPerRune(pwd)
			break
		}
	}
	switch {
	case bits >= 80:
		return 4
	case bits >= 60:
		return 3
	case bits >= 36:
		return 2
	case bits >= 28:
		return 1
	default:
		return 0
	}
}

func entropyBits(pwd string) float64 {
	return float64(utf8.RuneCountInString(pwd)) * bitsPerRune(pwd)
}

func bitsPerRune(pwd string) float64 {
	var lower, upper, digit, other bool
	for _, r := range pwd {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if other {
		pool += 33
	}
	return math.Log2(float64(pool))
}

func warningFor(s int) *Warning {
	switch s {
	case 2:
		return &Warning{Score: 2, Message: "Fairly easy to guess.",
			Suggestions: []string{"Add a few characters or mix in symbols."}}
	case 1:
		return &Warning{Score: 1, Message: "Easy to guess.",
			Suggestions: []string{"Use 12 or more characters from several groups."}}
	default:
		return &Warning{Score: 0, Message: "Very easy to guess.",
			Suggestions: []string{"Avoid your name or email.", "Try a passphrase of four unrelated words."}}
	}
}
