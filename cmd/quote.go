package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/pricing"
)

var moneyPrinter = message.NewPrinter(language.English)

// formatCents renders a cent amount with thousands grouping, e.g. 98,250.00.
func formatCents(c int64) string {
	return moneyPrinter.Sprintf("%.2f", float64(c)/100)
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price an invoice for a grade and tenor",
	Long: `Computes the discount quote for an invoice: annual rate, period yield,
advance paid to the seller, and the funder's annualized return.

Examples:
  # Grade B invoice, 100,000.00 face value, 90 days
  quote --amount 100000 --tenor 90 --grade B

  # Grade A with insurance opted in and the ESG adjustment
  quote --amount 50000 --tenor 30 --grade A --insurance --esg --json`,
	RunE: runQuote,
}

func init() {
	f := quoteCmd.Flags()
	f.Float64("amount", 0, "invoice face value in major currency units")
	f.Int("tenor", 90, "tenor in days (30, 90, or 120)")
	f.String("grade", "", "risk grade (A, B, or C)")
	f.Bool("insurance", false, "opt in to insurance (grades B and C carry it regardless)")
	f.Bool("esg", false, "apply the ESG adjustment")
	f.Bool("json", false, "print the quote as JSON")

	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, _ []string) error {
	amount, _ := cmd.Flags().GetFloat64("amount")
	tenor, _ := cmd.Flags().GetInt("tenor")
	grade, _ := cmd.Flags().GetString("grade")
	insurance, _ := cmd.Flags().GetBool("insurance")
	esg, _ := cmd.Flags().GetBool("esg")
	asJSON, _ := cmd.Flags().GetBool("json")

	engine := pricing.New(cfg.Pricing)
	q, err := engine.Price(pricing.Request{
		FaceValueCents: model.Cents(amount),
		TenorDays:      tenor,
		Grade:          model.Grade(grade),
		InsuranceOptIn: insurance,
		ESG:            esg,
	})
	if err != nil {
		return err
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(q)
	}

	fmt.Printf("Grade:         %s (tenor %d days)\n", q.Grade, q.TenorDays)
	fmt.Printf("Annual rate:   %.2f%%\n", q.AnnualRatePct)
	fmt.Printf("Period yield:  %.2f%%\n", q.PeriodYieldPct)
	fmt.Printf("Face value:    %s\n", formatCents(q.FaceValueCents))
	fmt.Printf("Advance:       %s\n", formatCents(q.AdvanceCents))
	fmt.Printf("Discount fee:  %s\n", formatCents(q.FeeCents))
	fmt.Printf("Funder APR:    %.2f%%\n", q.FunderAPRPct)
	if q.InsuranceApplied {
		fmt.Printf("Insurance:     applied (%.2f%% relief)\n", q.InsuranceRatePct)
	}
	if q.ESGApplied {
		fmt.Println("ESG:           applied")
	}
	fmt.Printf("Config:        %s\n", q.ConfigVersion)
	return nil
}
