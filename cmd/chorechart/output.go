package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// render writes v as indented JSON when --json is set, otherwise as a table
// with the given header and one row per call to rows.
func (a *app) render(cmd *cobra.Command, v any, header []string, rows func(add func(cols ...any))) error {
	out := cmd.OutOrStdout()
	if a.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return table(out, header, rows)
}

func table(out io.Writer, header []string, rows func(add func(cols ...any))) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	rows(func(cols ...any) {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	})
	return tw.Flush()
}

func cell(v any) string {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Format("2006-01-02 15:04")
	case *time.Time:
		if x == nil {
			return "-"
		}
		return cell(*x)
	case *int64:
		if x == nil {
			return "-"
		}
		return fmt.Sprint(*x)
	case *int:
		if x == nil {
			return "-"
		}
		return fmt.Sprint(*x)
	case string:
		if x == "" {
			return "-"
		}
		return x
	default:
		return fmt.Sprint(v)
	}
}
