package experiment

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cwbudde/optbench/internal/nn"
)

// formatValue prints v with the fewest digits that round-trip
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// errWriter remembers the first write error so report code can print freely
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) accuracy(a nn.Accuracy) {
	e.printf("Correctly classified %d instances.\n", a.Correct)
	e.printf("Incorrectly classified %d instances.\n", a.Incorrect)
	e.printf("Percent correctly classified: %.3f%%\n", a.Percent())
}
