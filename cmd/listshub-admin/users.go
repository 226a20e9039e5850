package main

import (
	"fmt"

	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var recountFamily string

var promoteMasterCmd = &cobra.Command{
	Use:   "promote-master <email>",
	Short: "Grant the master role to an existing user",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromoteMaster,
}

var recountSeatsCmd = &cobra.Command{
	Use:   "recount-seats",
	Short: "Recompute owner seat usage from active memberships",
	RunE:  runRecountSeats,
}

func init() {
	recountSeatsCmd.Flags().StringVar(&recountFamily, "family", "", "only recount the owner of this family")
	rootCmd.AddCommand(promoteMasterCmd, recountSeatsCmd)
}

func runPromoteMaster(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := services.NewUserService(db).PromoteToMaster(ctx, args[0])
	if err != nil {
		return fmt.Errorf("promote %s: %w", args[0], err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Successfully promoted %s to master\n", user.Email)
	return nil
}

func runRecountSeats(cmd *cobra.Command, args []string) error {
	var familyID *uuid.UUID
	if recountFamily != "" {
		id, err := uuid.Parse(recountFamily)
		if err != nil {
			return fmt.Errorf("invalid --family: %w", err)
		}
		familyID = &id
	}

	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	// Seat recount touches neither entitlements nor events.
	families := services.NewFamilyService(db, nil, nil, nil)
	updated, err := families.RecountSeats(ctx, familyID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated seat usage for %d users\n", updated)
	return nil
}
