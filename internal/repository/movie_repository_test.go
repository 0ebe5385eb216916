package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPages(t *testing.T) {
	cases := []struct {
		total, limit, want int
	}{
		{0, 8, 0},   // empty catalog has zero pages
		{1, 8, 1},
		{8, 8, 1},
		{9, 8, 2},
		{10, 4, 3},  // ceil(10/4)
		{16, 8, 2},
		{17, 8, 3},
		{5, 0, 0},   // nonsense limit never divides by zero
		{-3, 8, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Pages(tc.total, tc.limit), "Pages(%d, %d)", tc.total, tc.limit)
	}
}
