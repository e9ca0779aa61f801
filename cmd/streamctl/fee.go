package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/types"
)

func feeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee [amount]",
		Short: "Quote the routing fee for an amount",
		Long: `Quote the fee taken when a route or invoice of the given amount is
funded. The amount is in smallest units unless --decimals is set.`,
		Args: cobra.ExactArgs(1),
		RunE: runFee,
	}

	cmd.Flags().Uint8P("tier", "t", 0, "Discount tier of the payer (0-4)")
	cmd.Flags().BoolP("nominated", "n", false, "Asset is nominated")
	cmd.Flags().String("schedule", "", "Fee schedule (tiered, flat); defaults to config")
	cmd.Flags().Int32("decimals", 0, "Parse amount as a decimal with this many places")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func runFee(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("schedule")
	if name == "" {
		name = cfg.FeeSchedule
	}
	schedule, err := fee.ScheduleByName(name)
	if err != nil {
		return err
	}

	decimals, _ := cmd.Flags().GetInt32("decimals")
	amount, err := types.ParseAmount(args[0], decimals)
	if err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}

	tier, _ := cmd.Flags().GetUint8("tier")
	nominated, _ := cmd.Flags().GetBool("nominated")
	q := schedule.Quote(amount, tier, nominated)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}

	fmt.Fprintf(out, "Schedule: %s\n", schedule.Name)
	fmt.Fprintf(out, "Rate:     %d bps\n", q.Bps)
	fmt.Fprintf(out, "Amount:   %s\n", types.FormatAmount(q.Amount, decimals))
	fmt.Fprintf(out, "Fee:      %s\n", types.FormatAmount(q.Fee, decimals))
	fmt.Fprintf(out, "Net:      %s\n", types.FormatAmount(q.Net, decimals))
	return nil
}
