package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/ledger"
	"github.com/riftfin/riftcore/internal/model"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Inspect the tenor liquidity pools",
}

var poolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every pool's balances",
	RunE:  runPoolsList,
}

var poolsConservationCmd = &cobra.Command{
	Use:   "conservation",
	Short: "Replay a pool's entry log and check it against stored balances",
	RunE:  runPoolsConservation,
}

func init() {
	poolsListCmd.Flags().String("export", "", "write the pool table to an .xlsx file instead of stdout")
	poolsConservationCmd.Flags().Int("tenor", 0, "pool tenor in days (required)")
	poolsConservationCmd.Flags().Bool("json", false, "print the report as JSON")
	_ = poolsConservationCmd.MarkFlagRequired("tenor")

	poolsCmd.AddCommand(poolsListCmd, poolsConservationCmd)
	rootCmd.AddCommand(poolsCmd)
}

// poolsLedger wires the environment and returns the ledger, erroring when
// the configured store cannot back one.
func poolsLedger(cmd *cobra.Command) (*ledger.Ledger, func(), error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)

	if err := cfg.Validate(); err != nil {
		stop()
		return nil, nil, err
	}
	env, err := initEnv(ctx)
	if err != nil {
		stop()
		return nil, nil, err
	}
	if env.Ledger == nil {
		env.Close()
		stop()
		return nil, nil, eris.Errorf("pools: ledger requires the postgres store backend, got %s", cfg.Store.Driver)
	}
	cleanup := func() {
		env.Close()
		stop()
	}
	return env.Ledger, cleanup, nil
}

func runPoolsList(cmd *cobra.Command, _ []string) error {
	led, cleanup, err := poolsLedger(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	pools, err := led.Pools(cmd.Context())
	if err != nil {
		return err
	}

	exportPath, _ := cmd.Flags().GetString("export")
	if exportPath != "" {
		entries := make(map[string][]model.LedgerEntry, len(pools))
		for _, p := range pools {
			es, err := led.Entries(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			entries[p.ID] = es
		}
		if err := exportPools(exportPath, pools, entries); err != nil {
			return err
		}
		fmt.Printf("Wrote %d pools to %s\n", len(pools), exportPath)
		return nil
	}

	if len(pools) == 0 {
		fmt.Println("No pools. Run migrate first.")
		return nil
	}
	fmt.Printf("%-7s %7s %18s %18s %18s\n", "Tenor", "APR", "Total", "Available", "TVL")
	for _, p := range pools {
		fmt.Printf("%-7s %6.2f%% %18s %18s %18s\n",
			strconv.Itoa(p.TenorDays)+"d", p.APR,
			formatCents(p.TotalCents), formatCents(p.AvailableCents), formatCents(p.TVLCents))
	}
	return nil
}

var (
	poolExportHeader = []string{
		"tenor_days", "apr", "total_cents", "available_cents", "tvl_cents", "updated_at",
	}
	entryExportHeader = []string{
		"tenor_days", "ref_type", "amount_cents", "ref_id", "tx_ref", "idempotency_key", "created_at",
	}
)

// exportPools writes one sheet of pool balances and one sheet of every
// pool's full movement log.
func exportPools(path string, pools []model.Pool, entries map[string][]model.LedgerEntry) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pools")
	if err != nil {
		return eris.Wrap(err, "pools: add export sheet")
	}

	header := sheet.AddRow()
	for _, h := range poolExportHeader {
		header.AddCell().SetString(h)
	}
	for _, p := range pools {
		row := sheet.AddRow()
		row.AddCell().SetInt(p.TenorDays)
		row.AddCell().SetFloat(p.APR)
		row.AddCell().SetInt64(p.TotalCents)
		row.AddCell().SetInt64(p.AvailableCents)
		row.AddCell().SetInt64(p.TVLCents)
		row.AddCell().SetString(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	entrySheet, err := f.AddSheet("Entries")
	if err != nil {
		return eris.Wrap(err, "pools: add entries sheet")
	}
	header = entrySheet.AddRow()
	for _, h := range entryExportHeader {
		header.AddCell().SetString(h)
	}
	for _, p := range pools {
		for _, e := range entries[p.ID] {
			row := entrySheet.AddRow()
			row.AddCell().SetInt(p.TenorDays)
			row.AddCell().SetString(string(e.RefType))
			row.AddCell().SetInt64(e.AmountCents)
			row.AddCell().SetString(e.RefID)
			row.AddCell().SetString(e.TxRef)
			row.AddCell().SetString(e.IdempotencyKey)
			row.AddCell().SetString(e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "pools: write export %s", path)
	}
	return nil
}

func runPoolsConservation(cmd *cobra.Command, _ []string) error {
	led, cleanup, err := poolsLedger(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	tenor, _ := cmd.Flags().GetInt("tenor")
	asJSON, _ := cmd.Flags().GetBool("json")

	report, err := led.VerifyConservation(cmd.Context(), tenor)
	if err != nil && !fault.IsInvariant(err) {
		return err
	}

	if asJSON {
		if encErr := json.NewEncoder(os.Stdout).Encode(report); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Printf("Pool:      %s (tenor %d days)\n", report.PoolID, report.TenorDays)
	fmt.Printf("Entries:   %d\n", report.EntryCount)
	fmt.Printf("TVL:       %s\n", formatCents(report.TVLCents))
	fmt.Printf("Replayed:  %s\n", formatCents(report.ReplayedCents))
	fmt.Printf("Available: %s of %s\n", formatCents(report.AvailableCents), formatCents(report.TotalCents))
	if report.Consistent {
		fmt.Println("Status:    consistent")
		return nil
	}
	fmt.Println("Status:    MISMATCH, manual reconciliation required")
	return err
}
