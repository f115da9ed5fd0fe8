package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/varoOP/crimedb/internal/domain"
)

type Output string

const (
	OutputTable Output = "table"
	OutputYAML  Output = "yaml"
	OutputJSON  Output = "json"
)

func ParseOutput(s string) (Output, error) {
	switch o := Output(strings.ToLower(strings.TrimSpace(s))); o {
	case OutputTable, OutputYAML, OutputJSON:
		return o, nil
	case "":
		return OutputTable, nil
	default:
		return "", errors.Errorf("unknown output %q (must be 'table', 'yaml' or 'json')", s)
	}
}

func encode(w io.Writer, out Output, v any) error {
	switch out {
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encode json")
	}
	return errors.Errorf("unsupported output %q", out)
}

// Value writes v as YAML or JSON.
func Value(w io.Writer, out Output, v any) error {
	return encode(w, out, v)
}

// Counts writes per-month incident counts. The table form draws a bar per
// month and marks the current month.
func Counts(w io.Writer, out Output, counts []domain.MonthCount) error {
	if out != OutputTable {
		return encode(w, out, counts)
	}

	if len(counts) == 0 {
		_, err := fmt.Fprintln(w, "No months cached for this location.")
		return err
	}

	maxCount := 0
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tCOUNT\t")
	for _, c := range counts {
		marker := ""
		if c.Current {
			marker = " <"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s%s\n", c.Month, c.Count, bar(c.Count, maxCount, 40), marker)
	}
	return tw.Flush()
}

func bar(n, max, width int) string {
	if max == 0 || n == 0 {
		return ""
	}
	w := n * width / max
	if w == 0 {
		w = 1
	}
	return strings.Repeat("#", w)
}

// Incidents writes incident listings.
func Incidents(w io.Writer, out Output, incidents []domain.Incident) error {
	if out != OutputTable {
		if incidents == nil {
			incidents = []domain.Incident{}
		}
		return encode(w, out, incidents)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLAT\tLNG\tSTREET")
	for _, i := range incidents {
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%s\n", i.ID, i.Category, i.Lat, i.Lng, i.StreetName)
	}
	return tw.Flush()
}

// Stats writes the store summary.
func Stats(w io.Writer, out Output, stats *domain.Stats) error {
	if out != OutputTable {
		return encode(w, out, stats)
	}

	fmt.Fprintf(w, "Incidents stored: %d\n", stats.Incidents)
	fmt.Fprintf(w, "Locations cached: %d\n\n", len(stats.Locations))
	if len(stats.Locations) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tMONTHS\tFIRST\tLAST\tRECORDS")
	for _, l := range stats.Locations {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", l.LocationKey, l.Months, l.FirstMonth, l.LastMonth, l.Records)
	}
	return tw.Flush()
}
