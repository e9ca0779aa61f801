package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/streams/mirror"
	"github.com/xraph/streams/registry"
)

func totalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totals [snapshot]",
		Short: "Compute registry totals for the routes in a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE:  runTotals,
	}

	cmd.Flags().String("network", "", "Only report this network")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func runTotals(cmd *cobra.Command, args []string) error {
	src, err := mirror.LoadFile(args[0])
	if err != nil {
		return err
	}

	networks := src.Networks()
	if only, _ := cmd.Flags().GetString("network"); only != "" {
		networks = []string{only}
	}

	totals := make([]registry.Totals, 0, len(networks))
	for _, n := range networks {
		totals = append(totals, src.Totals(n))
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(totals)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tROUTES\tTOTAL ROUTED\tACTIVE")
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", t.Network, t.NumRoutes, t.TotalRouted, t.CurrentActiveTotal)
	}
	return w.Flush()
}
