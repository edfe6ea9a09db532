package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sdewalk/sdewalk/internal/sim"
	"github.com/sdewalk/sdewalk/internal/tabular"
)

// writeResult renders a result in the requested format to w.
func writeResult(w io.Writer, format string, res *sim.Result) error {
	switch format {
	case "csv":
		return tabular.WriteCSV(w, res)
	case "arrow":
		return tabular.WriteIPC(w, res)
	case "table":
		return tabular.WriteTable(w, res)
	default:
		return fmt.Errorf("unknown format: %s (valid: csv, arrow, table)", format)
	}
}

// writeResultTo renders to a file when out is set, otherwise to stdout.
func writeResultTo(out, format string, res *sim.Result) error {
	if out == "" {
		return writeResult(os.Stdout, format, res)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := writeResult(f, format, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
