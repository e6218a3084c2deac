package scheduler

import (
	"fmt"
	"io"
)

const (
	tableDivider = "+------+----------------+----------------+----------+\n"
	tableHeader  = "| Tick | Task Name      | Budget         | Priority |\n"
)

// WriteTable renders tbl for operators, one row per placement and a total
// row per tick. tasks must be the registry the table was built from.
func WriteTable[H comparable](w io.Writer, tbl *Table[H], tasks []Task[H]) error {
	if tbl == nil || len(tbl.Entries) == 0 {
		_, err := io.WriteString(w, "Schedule table is empty.\n")
		return err
	}
	ew := &errWriter{w: w}
	ew.printf("Schedule table: %d ticks of %s\n", len(tbl.Entries), tbl.TickDuration)
	ew.printf(tableDivider)
	ew.printf(tableHeader)
	ew.printf(tableDivider)
	for t, e := range tbl.Entries {
		if len(e.Slots) == 0 {
			ew.printf("| %4d | %-14s | %-14s | %-8s |\n", t, "No tasks", "-", "-")
			ew.printf(tableDivider)
			continue
		}
		for _, idx := range e.Slots {
			task := tasks[idx]
			ew.printf("| %4d | %-14.14s | %-14s | %-8d |\n", t, task.Name, task.Budget, task.Priority)
		}
		ew.printf("| %4s | %-14s | %-14s | %-8s |\n", "-", "Total Time", e.Cumulative, "-")
		ew.printf(tableDivider)
	}
	return ew.err
}

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
