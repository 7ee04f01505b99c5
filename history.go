package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/storj-go/internal/ledger"
)

const defaultHistoryLimit = 20

// shortHashLen is how much of the content hash the history table shows.
const shortHashLen = 12

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent uploads and downloads",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "number of transfers to show")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if !cc.Cfg.HistoryEnabled {
		return errors.New("transfer history is disabled; enable it with 'storj-go config set history.enabled true'")
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	l, err := ledger.Open(cmd.Context(), cc.Cfg.HistoryPath(), cc.Logger)
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(records)
	}

	if len(records) == 0 {
		cc.Statusf("No transfers recorded\n")
		return nil
	}

	rows := make([][]string, 0, len(records))

	for i := range records {
		rows = append(rows, historyRow(&records[i]))
	}

	printTable(cc.Stdout, []string{"STARTED", "DIRECTION", "STATUS", "SIZE", "SHA256", "NAME", "DETAIL"}, rows)

	return nil
}

func historyRow(r *ledger.Record) []string {
	size := formatSize(r.Size)
	if r.Status != ledger.StatusDone && r.Size > 0 {
		size = fmt.Sprintf("%s / %s", formatSize(r.BytesDone), formatSize(r.Size))
	}

	detail := r.LocalPath
	if r.ErrorMsg != "" {
		detail = r.ErrorMsg
		if r.ErrorCode != 0 {
			detail += " (code " + strconv.Itoa(r.ErrorCode) + ")"
		}
	}

	hash := "-"
	if r.LocalHash != "" {
		hash = r.LocalHash[:min(shortHashLen, len(r.LocalHash))]
	}

	return []string{formatTime(r.StartedAt), r.Direction, string(r.Status), size, hash, r.Name, detail}
}
