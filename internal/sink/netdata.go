package sink

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Netdata writes the external plugin text protocol:
//
//	CHART Smartplugs.power 'Power' 'Power' 'watts' 'power' 'smartplugpower.power' area 90000
//	DIMENSION 192_168_0_10_Power 'Desk lamp (192.168.0.10)' absolute 1 1
//	BEGIN Smartplugs.power
//	SET 192_168_0_10_Power = 12
//	END
//
// Declarations are flushed immediately; samples are flushed on Commit.
type Netdata struct {
	Buffer
	w       *bufio.Writer
	current string // chart the next DIMENSION line attaches to
}

// NewNetdata creates a [Netdata] sink writing to w, usually os.Stdout.
func NewNetdata(w io.Writer) *Netdata {
	return &Netdata{w: bufio.NewWriter(w)}
}

// DeclareChart implements [Sink].
func (n *Netdata) DeclareChart(c Chart) error {
	if err := n.Buffer.DeclareChart(c); err != nil {
		return err
	}
	fmt.Fprintf(n.w, "CHART %s %s %s %s %s %s %s %d\n",
		c.ID, quote(c.Name), quote(c.Title), quote(c.Units),
		quote(c.Family), quote(c.Context), chartType(c.Type), c.Priority)
	n.current = c.ID
	return n.flush()
}

// DeclareDimension implements [Sink]. Netdata attaches a DIMENSION line to
// the most recent CHART line, so the chart is re-announced when needed.
func (n *Netdata) DeclareDimension(chartID string, d Dimension) error {
	d, err := n.Buffer.DeclareDimension(chartID, d)
	if err != nil {
		return err
	}
	if n.current != chartID {
		fmt.Fprintf(n.w, "CHART %s\n", chartID)
		n.current = chartID
	}
	fmt.Fprintf(n.w, "DIMENSION %s %s %s %d %d\n",
		d.ID, quote(d.Name), d.Algorithm, d.Multiplier, d.Divisor)
	return n.flush()
}

// Commit implements [Sink].
func (n *Netdata) Commit(chartID string) error {
	_, values, err := n.Take(chartID)
	if err != nil {
		return err
	}
	fmt.Fprintf(n.w, "BEGIN %s\n", chartID)
	for _, v := range values {
		fmt.Fprintf(n.w, "SET %s = %d\n", v.Dimension.ID, v.Value)
	}
	fmt.Fprintln(n.w, "END")
	return n.flush()
}

func (n *Netdata) flush() error {
	if err := n.w.Flush(); err != nil {
		return fmt.Errorf("netdata: write: %w", err)
	}
	return nil
}

func chartType(t string) string {
	if t == "" {
		return "line"
	}
	return t
}

// quote wraps s in single quotes. The protocol has no escape sequence, so
// embedded single quotes become double quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `"`) + "'"
}

var _ Sink = (*Netdata)(nil)
