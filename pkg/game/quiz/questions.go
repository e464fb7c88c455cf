package quiz

import (
	"strings"

	"github.com/cbodonnell/partyhub/pkg/game/constants"
)

// Question is one multiple choice question. CorrectIndex points into Options.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// DemoQuestions is the built-in question pool.
var DemoQuestions = []Question{
	{Text: "Was ist die Hauptstadt von Deutschland?", Options: []string{"München", "Berlin", "Hamburg", "Köln"}, CorrectIndex: 1},
	{Text: "Wie viele Planeten hat unser Sonnensystem?", Options: []string{"7", "8", "9", "10"}, CorrectIndex: 1},
	{Text: "In welchem Jahr fiel die Mauer?", Options: []string{"1987", "1989", "1991", "1985"}, CorrectIndex: 1},
	{Text: "Welche Farbe hat ein Smaragd?", Options: []string{"Blau", "Rot", "Grün", "Gelb"}, CorrectIndex: 2},
	{Text: "Was ist 7 × 8?", Options: []string{"54", "56", "58", "60"}, CorrectIndex: 1},
}

// Valid reports whether q has text and a full set of options with the correct one among them.
func (q Question) Valid() bool {
	return strings.TrimSpace(q.Text) != "" &&
		len(q.Options) == constants.QuizOptionsPerQuestion &&
		q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

func validQuestions(pool []Question) []Question {
	valid := make([]Question, 0, len(pool))
	for _, q := range pool {
		if q.Valid() {
			valid = append(valid, q)
		}
	}
	return valid
}
