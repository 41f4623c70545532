package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAssignees(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int64
	}{
		{name: "json single", raw: "[7]", want: []int64{7}},
		{name: "json multiple", raw: "[7,12,3]", want: []int64{7, 12, 3}},
		{name: "json with spaces", raw: " [7, 12] ", want: []int64{7, 12}},
		{name: "json string array falls back to tokens", raw: `["7","12"]`, want: []int64{7, 12}},
		{name: "loose comma text", raw: "7, 12", want: []int64{7, 12}},
		{name: "loose mixed text", raw: "user 7; also 12 and 9", want: []int64{7, 12, 9}},
		{name: "duplicates removed", raw: "[7,7,12]", want: []int64{7, 12}},
		{name: "non positive ids dropped", raw: "[0,-3,7]", want: []int64{7}},
		{name: "empty", raw: "", want: nil},
		{name: "whitespace only", raw: "   ", want: nil},
		{name: "no digits", raw: "nobody", want: nil},
		{name: "empty json array", raw: "[]", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAssignees(tt.raw))
		})
	}
}
