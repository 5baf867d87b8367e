package bot

import (
	"fmt"
	"html"
	"strings"
)

const (
	markerCorrect   = "✅"
	markerIncorrect = "❌"
	markerNeutral   = "▫️"
)

// buildKeyboard produces one button per option, in option order. The order is
// shown to the user and must match the index used later by the reveal.
func buildKeyboard(chapter string, q Question) []Button {
	buttons := make([]Button, 0, len(q.Options))
	for i, opt := range q.Options {
		buttons = append(buttons, Button{
			Label: opt.Text,
			Data:  EncodeToken(chapter, q.ID, i),
		})
	}
	return buttons
}

func formatQuestionMessage(chapter string, q Question) string {
	return fmt.Sprintf("📚 <b>%s</b>\n\n❓ %s", html.EscapeString(chapter), html.EscapeString(q.Question))
}

// renderReveal rebuilds the question as an answer reveal: the correct option
// gets ✅, the user's pick gets ❌ when it differs, everything else ▫️. The
// explanation shown is the selected option's, so users see why their own pick
// was right or wrong.
func renderReveal(q Question, selected int) (string, error) {
	if selected < 0 || selected >= len(q.Options) {
		return "", fmt.Errorf("%w: %d of %d options", ErrInvalidSelection, selected, len(q.Options))
	}

	correct := correctIndex(q)

	lines := make([]string, 0, len(q.Options)+2)
	lines = append(lines, fmt.Sprintf("<b>❓ %s</b>\n", html.EscapeString(q.Question)))
	for i, opt := range q.Options {
		marker := markerNeutral
		switch {
		case i == correct:
			marker = markerCorrect
		case i == selected:
			marker = markerIncorrect
		}
		lines = append(lines, marker+" "+html.EscapeString(opt.Text))
	}
	lines = append(lines, "\n💡 "+html.EscapeString(q.Options[selected].Explanation))

	return strings.Join(lines, "\n"), nil
}

// correctIndex returns the first option marked correct, or -1. A chapter file
// may legitimately mark none; the reveal then shows no ✅ at all.
func correctIndex(q Question) int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

func findQuestion(qs []Question, id int) (Question, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
