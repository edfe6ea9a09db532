// Package tabular converts assembled simulation results into tabular
// containers at the engine boundary: an Apache Arrow record, Arrow-backed
// CSV, an Arrow IPC stream, or a plain text table for terminals.
package tabular

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/sdewalk/sdewalk/internal/sim"
)

// Schema returns the Arrow schema for a result: scenario, time, then one
// float64 column per process in declaration order.
func Schema(res *sim.Result) *arrow.Schema {
	fields := make([]arrow.Field, 0, 2+len(res.Processes))
	fields = append(fields,
		arrow.Field{Name: "scenario", Type: arrow.PrimitiveTypes.Int64},
		arrow.Field{Name: "time", Type: arrow.PrimitiveTypes.Float64},
	)
	for _, name := range res.Processes {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
	}
	return arrow.NewSchema(fields, nil)
}

// Record builds an Arrow record holding every row of the result. The caller
// owns the returned record and must Release it.
func Record(res *sim.Result) arrow.Record {
	schema := Schema(res)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	scenarios := b.Field(0).(*array.Int64Builder)
	times := b.Field(1).(*array.Float64Builder)
	for _, row := range res.Rows {
		scenarios.Append(int64(row.Scenario))
		times.Append(row.Time)
		for i, v := range row.Values {
			b.Field(2 + i).(*array.Float64Builder).Append(v)
		}
	}
	return b.NewRecord()
}

// WriteCSV streams the result as CSV with a header row.
func WriteCSV(w io.Writer, res *sim.Result) error {
	rec := Record(res)
	defer rec.Release()

	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return cw.Error()
}

// WriteIPC writes the result as an Arrow IPC stream.
func WriteIPC(w io.Writer, res *sim.Result) error {
	rec := Record(res)
	defer rec.Release()

	sw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := sw.Write(rec); err != nil {
		sw.Close()
		return fmt.Errorf("write ipc: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("close ipc writer: %w", err)
	}
	return nil
}

// WriteTable renders the result as an aligned text table for terminal
// output.
func WriteTable(w io.Writer, res *sim.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "SCENARIO\tTIME")
	for _, name := range res.Processes {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)
	for _, row := range res.Rows {
		fmt.Fprintf(tw, "%d\t%g", row.Scenario, row.Time)
		for _, v := range row.Values {
			fmt.Fprintf(tw, "\t%.6g", v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
