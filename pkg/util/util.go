package util

import (
	"io"
	"math"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func ReverseG[T any](arr []T) {
	for i, j := 0, len(arr)-1; i < j; i, j = i+1, j-1 {
		arr[i], arr[j] = arr[j], arr[i]
	}
}

// NewProgressBar colored step progress bar, e.g. description "[cyan][2/4][reset] repairing graph...".
// A disabled bar writes nowhere.
func NewProgressBar(total int, description string, enabled bool) *progressbar.ProgressBar {
	var w io.Writer = io.Discard
	if enabled {
		w = ansi.NewAnsiStdout()
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
