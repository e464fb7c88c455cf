package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFirestoreDocument_NestedArrays(t *testing.T) {
	doc, err := toFirestoreDocument(Document{
		"round": 2,
		"cards": map[string]interface{}{
			"p1": [][]interface{}{{1, 16}, {"FREE", 31.5}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), doc["round"])
	card := doc["cards"].(map[string]interface{})["p1"].([]interface{})
	assert.Equal(t, map[string]interface{}{nestedArrayKey: []interface{}{int64(1), int64(16)}}, card[0])
	assert.Equal(t, map[string]interface{}{nestedArrayKey: []interface{}{"FREE", 31.5}}, card[1])

	back := fromFirestoreValue(doc).(map[string]interface{})
	assert.Equal(t, []interface{}{
		[]interface{}{int64(1), int64(16)},
		[]interface{}{"FREE", 31.5},
	}, back["cards"].(map[string]interface{})["p1"])
}
