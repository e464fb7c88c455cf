package imposter

import (
	"github.com/cbodonnell/partyhub/pkg/game/constants"
)

// WordPair is a crew word and the related word the imposter sees.
type WordPair struct {
	Crew     string
	Imposter string
}

// DefaultWordPairs are used when no usable word set is selected.
var DefaultWordPairs = []WordPair{
	{Crew: "Zitrone", Imposter: "Limette"},
	{Crew: "Apfel", Imposter: "Birne"},
	{Crew: "Auto", Imposter: "Motorrad"},
	{Crew: "Hund", Imposter: "Wolf"},
	{Crew: "Computer", Imposter: "Tablet"},
	{Crew: "Berg", Imposter: "Hügel"},
	{Crew: "Kaffee", Imposter: "Tee"},
	{Crew: "Katze", Imposter: "Löwe"},
	{Crew: "Schule", Imposter: "Universität"},
	{Crew: "Fluss", Imposter: "See"},
}

// WordSet is an admin-managed list of pairs. Words holds whatever the record
// contains; only two-element string arrays are usable pairs.
type WordSet struct {
	ID    string        `json:"-"`
	Title string        `json:"title"`
	Words []interface{} `json:"words"`
}

func (w *WordSet) SetID(id string) {
	w.ID = id
}

// Pairs returns the valid pairs of the set in order.
func (w *WordSet) Pairs() []WordPair {
	pairs := []WordPair{}
	for _, entry := range w.Words {
		items, ok := entry.([]interface{})
		if !ok || len(items) != 2 {
			continue
		}
		crew, ok1 := items[0].(string)
		imp, ok2 := items[1].(string)
		if !ok1 || !ok2 || crew == "" || imp == "" {
			continue
		}
		pairs = append(pairs, WordPair{Crew: crew, Imposter: imp})
	}
	return pairs
}

// ChoosePairs returns the set's pairs when it has enough of them, otherwise the defaults.
func ChoosePairs(set *WordSet) []WordPair {
	if set != nil {
		if pairs := set.Pairs(); len(pairs) >= constants.ImposterMinWordPairs {
			return pairs
		}
	}
	return DefaultWordPairs
}
