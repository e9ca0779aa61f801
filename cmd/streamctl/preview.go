package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/mirror"
)

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [snapshot] [route-id...]",
		Short: "Preview vested and claimable amounts from a snapshot file",
		Long: `Evaluate routes recorded in a YAML or JSON snapshot without touching
any store. With no route ids every route in the snapshot is shown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPreview,
	}

	cmd.Flags().Int64("at", 0, "Unix time to evaluate at (default: now)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	src, err := mirror.LoadFile(args[0])
	if err != nil {
		return err
	}

	at, _ := cmd.Flags().GetInt64("at")
	if at == 0 {
		at = time.Now().Unix()
	}

	ids := src.IDs()
	if len(args) > 1 {
		ids = ids[:0]
		for _, raw := range args[1:] {
			rid, err := id.ParseAny(raw)
			if err != nil {
				return err
			}
			ids = append(ids, rid)
		}
	}

	// Fees are not involved in a preview; the schedule only backs PreviewFee.
	m := mirror.New(src, fee.TieredSchedule)
	previews := make([]*mirror.Preview, 0, len(ids))
	for _, rid := range ids {
		p, err := m.Preview(cmd.Context(), rid, at)
		if err != nil {
			return err
		}
		previews = append(previews, p)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(previews)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tCLAIMABLE\tREMAINING\tNEXT UNLOCK\tEXHAUSTED")
	for _, p := range previews {
		next := "-"
		if p.NextUnlock != 0 {
			next = time.Unix(p.NextUnlock, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", p.RouteID, p.ClaimableDisplay, p.RemainingDisplay, next, p.Exhausted)
	}
	return w.Flush()
}
