package util_test

import (
	"testing"

	"lintang/runpathx/pkg/util"

	"github.com/stretchr/testify/assert"
)

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 3.14, util.RoundFloat(3.14159, 2))
	assert.Equal(t, 2.0, util.RoundFloat(1.5, 0))
}

func TestReverseG(t *testing.T) {
	ids := []int64{1, 2, 3, 4}
	util.ReverseG(ids)
	assert.Equal(t, []int64{4, 3, 2, 1}, ids)

	empty := []string{}
	util.ReverseG(empty)
	assert.Empty(t, empty)
}

func TestNewProgressBarDisabled(t *testing.T) {
	bar := util.NewProgressBar(3, "[cyan][1/1][reset] test", false)
	assert.NoError(t, bar.Add(3))
}
