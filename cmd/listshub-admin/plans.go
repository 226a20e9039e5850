package main

import (
	"fmt"

	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/spf13/cobra"
	log "github.com/sirupsen/logrus"
)

var plansFile string

var seedPlansCmd = &cobra.Command{
	Use:   "seed-plans",
	Short: "Upsert the plan catalog into the plans table",
	Long:  "Upserts the built-in plan catalog, or the plans from --file, into the plans table. Existing plans with the same id are overwritten.",
	RunE:  runSeedPlans,
}

func init() {
	seedPlansCmd.Flags().StringVar(&plansFile, "file", "", "YAML plan catalog (default: built-in plans)")
	rootCmd.AddCommand(seedPlansCmd)
}

func runSeedPlans(cmd *cobra.Command, args []string) error {
	plans := entitlement.DefaultPlans()
	if plansFile != "" {
		loaded, err := entitlement.LoadCatalogFile(plansFile)
		if err != nil {
			return err
		}
		plans = loaded
	}

	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return seedPlans(cmd, services.NewPlanService(db), plans)
}

func seedPlans(cmd *cobra.Command, planService *services.PlanService, plans []models.Plan) error {
	for _, p := range plans {
		if err := planService.Upsert(cmd.Context(), p); err != nil {
			return err
		}
		log.WithField("plan", p.ID).Info("plan upserted")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d plans\n", len(plans))
	return nil
}
