package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadConfirmation(t *testing.T) {
	tests := []struct {
		raw  string
		want confirmDecision
	}{
		{"yes", confirmYes},
		{"  YES  ", confirmYes},
		{"y", confirmYes},
		{"send", confirmYes},
		{"looks good", confirmYes},
		{"yep", confirmYes},
		{"no", confirmNo},
		{"n", confirmNo},
		{"edit", confirmNo},
		{"Restart", confirmNo},
		{"maybe", confirmUnclear},
		{"yes please", confirmUnclear},
		{"", confirmUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, readConfirmation(tt.raw))
		})
	}
}
