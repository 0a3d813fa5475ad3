package rttiscanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUndecorate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{".?AVBase@@", "Base"},
		{".?AUPoint@@", "Point"},
		{".?AVWidget@ui@@", "ui::Widget"},
		{".?AVImpl@Render@engine@@", "engine::Render::Impl"},
		{".?AVtype_info@@", "type_info"},
		{".?AV?$vector@HV?$allocator@H@std@@@std@@", ".?AV?$vector@HV?$allocator@H@std@@@std@@"},
		{".?AVFoo@?A0x1234@@", ".?AVFoo@?A0x1234@@"},
		{".?AVBroken", ".?AVBroken"},
		{".?AV@@", ".?AV@@"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Undecorate(tt.input))
		})
	}
}
