package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/and161185/docsnap/internal/model"
	"github.com/and161185/docsnap/internal/service"
)

func printReport(w io.Writer, rep *service.Report) {
	if rep == nil || len(rep.Collections) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s run %s\t%s\n", rep.Operation, rep.RunID, rep.RunDir)
	fmt.Fprintln(tw, "COLLECTION\tDOCUMENTS\tFILE\tSTATUS")
	for _, c := range rep.Collections {
		status := "ok"
		if c.Err != nil {
			status = "FAILED: " + c.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.Collection, c.Documents, c.File, status)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d collection(s), %d failed, took %s\n",
		len(rep.Collections), len(rep.Failed()), rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
}

func printHistory(w io.Writer, recs []model.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tOPERATION\tCOLLECTION\tDOCUMENTS\tSTATUS\tRUN")
	for _, r := range recs {
		status := "ok"
		if !r.Succeeded() {
			status = "FAILED: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.FinishedAt.Local().Format(time.DateTime), r.Operation, r.Collection, r.Documents, status, r.RunID)
	}
	_ = tw.Flush()
}
