package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"etlmanifest/internal/config"
	"etlmanifest/internal/etl"
)

func printIssues(w io.Writer, source string, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s: %s\n", source, iss.Severity, iss.Path, iss.Message)
	}
}

func printResult(w io.Writer, res *etl.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "run %s\n", res.RunID)
	for _, jr := range res.Jobs {
		if jr.Err != nil {
			fmt.Fprintf(w, "  FAIL %s\n", jr.Error)
			continue
		}
		size := ""
		if jr.Export != nil {
			size = ", " + humanize.Bytes(uint64(jr.Export.Bytes))
		}
		fmt.Fprintf(w, "  ok   %s -> %s (%s rows%s, %s)\n",
			jr.ID, jr.Path, humanize.Comma(int64(jr.Rows)), size, jr.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "%d file(s), %d error(s)\n", len(res.Files), len(res.Errors))
	return nil
}
