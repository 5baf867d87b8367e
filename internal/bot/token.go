package bot

import (
	"fmt"
	"strconv"
	"strings"

	"telegram-quiz-bot/internal/config"
)

// EncodeToken packs (chapter, question id, option index) into the callback
// data string. Config validation guarantees chapter names never contain the
// delimiter, so the encoding stays reversible.
func EncodeToken(chapter string, questionID, optionIndex int) string {
	return strings.Join([]string{
		chapter,
		strconv.Itoa(questionID),
		strconv.Itoa(optionIndex),
	}, config.TokenDelimiter)
}

func DecodeToken(token string) (chapter string, questionID, optionIndex int, err error) {
	parts := strings.Split(token, config.TokenDelimiter)
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedToken, len(parts))
	}
	if parts[0] == "" {
		return "", 0, 0, fmt.Errorf("%w: empty chapter", ErrMalformedToken)
	}

	questionID, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: question id %q", ErrMalformedToken, parts[1])
	}
	optionIndex, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: option index %q", ErrMalformedToken, parts[2])
	}

	return parts[0], questionID, optionIndex, nil
}
