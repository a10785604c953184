package view

import (
	"fmt"
	"io"
	"time"

	"studylink/internal/studylink"
)

// RenderUnreachable writes the "could not connect" state when err means the
// backend could not be reached in time. It reports whether it wrote anything.
func RenderUnreachable(w io.Writer, err error, baseURL string) bool {
	if !studylink.IsRetryable(err) {
		return false
	}
	if baseURL == "" {
		fmt.Fprintln(w, "Could not connect to the study group service.")
	} else {
		fmt.Fprintf(w, "Could not connect to the study group service at %s.\n", baseURL)
	}
	fmt.Fprintf(w, "  %v\n", err)
	fmt.Fprintln(w, "Check that the server is running and try again.")
	return true
}

// RenderHistory writes one line per operation, newest first as given.
func RenderHistory(w io.Writer, ops []*studylink.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}

	for _, op := range ops {
		duration := ""
		if op.FinishedAt.Valid {
			d := op.FinishedAt.Time.Sub(op.StartedAt)
			duration = d.Truncate(time.Millisecond).String()
		}
		fmt.Fprintf(w, "#%d  %-12s  %s  user %-4d  %-8s  %-8s  %s\n",
			op.ID,
			op.Name,
			op.StartedAt.Local().Format("2006-01-02 15:04:05"),
			op.UserID,
			op.Status,
			duration,
			op.Parameters,
		)
		if op.Detail != "" {
			fmt.Fprintf(w, "      %s\n", op.Detail)
		}
	}
}
