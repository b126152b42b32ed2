package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{13.4, "13.40"},
		{2.346, "2.35"},
		{100, "100.00"},
		{-1.5, "-1.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat(tt.in))
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "210147125", formatInt(210147125))
	assert.Equal(t, "-3", formatInt(-3))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", formatDate(time.Time{}))
	assert.Equal(t, "2020-02-26", formatDate(time.Date(2020, 2, 26, 0, 0, 0, 0, time.UTC)))
}
