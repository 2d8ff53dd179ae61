package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

// A Printer writes the entries of a registry in a human readable form, one
// entry per line:
//
//	Core-0-L1D: Number of hits = 1024
type Printer struct {
	locationColor *color.Color
	valueColor    *color.Color
}

// NewPrinter creates a Printer. Colors are disabled automatically when the
// output is not a terminal.
func NewPrinter() *Printer {
	return &Printer{
		locationColor: color.New(color.FgCyan),
		valueColor:    color.New(color.Bold),
	}
}

// NoColor turns the colors off.
func (p *Printer) NoColor() *Printer {
	p.locationColor.DisableColor()
	p.valueColor.DisableColor()

	return p
}

// Print writes all the entries of the registry.
func (p *Printer) Print(w io.Writer, r *Registry) error {
	for _, e := range r.Entries() {
		_, err := fmt.Fprintf(w, "%s: %s = %s\n",
			p.locationColor.Sprint(e.Location),
			e.What,
			p.valueColor.Sprint(FormatValue(e)))
		if err != nil {
			return err
		}
	}

	return nil
}

// FormatValue prints integral values without a fraction and appends the unit.
func FormatValue(e Entry) string {
	var s string
	if e.Value == float64(int64(e.Value)) {
		s = strconv.FormatInt(int64(e.Value), 10)
	} else {
		s = strconv.FormatFloat(e.Value, 'f', 2, 64)
	}

	if e.Unit != "" {
		s += e.Unit
	}

	return s
}
