package step

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	items := make([]json.RawMessage, 13)

	cases := []struct {
		Name   string
		Offset int64
		Size   int
		Expect int
	}{
		{"First", 0, 5, 5},
		{"Middle", 5, 5, 5},
		{"Tail", 10, 5, 3},
		{"AtEnd", 13, 5, 0},
		{"PastEnd", 20, 5, 0},
		{"NegativeOffset", -3, 5, 5},
		{"ZeroSize", 0, 0, 0},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Len(t, Window(items, c.Offset, c.Size), c.Expect)
		})
	}
}
