package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmoorevt/socialstyles/internal/assessment"
	"github.com/gmoorevt/socialstyles/internal/services"
)

func initAssessmentCmd(g *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "init-assessment",
		Short: "Load a question set and make it the active assessment",
		Long: `Load a question set from --file (YAML), or the built-in 30 question
Social Styles set when no file is given, and make it the only active
assessment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := loadDefinition(file)
			if err != nil {
				return err
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			sqlDB, store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			svc := services.NewAssessmentService(store, nil, logger)
			a, err := svc.InitAssessment(cmd.Context(), def.Assessment())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assessment %q active (id %s, %d questions)\n", a.Name, a.ID, len(a.Questions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Question set YAML file (defaults to the built-in set)")
	return cmd
}

func loadDefinition(file string) (*assessment.Definition, error) {
	if file == "" {
		return assessment.Default()
	}
	return assessment.LoadFile(file)
}

func makeAdminCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "make-admin EMAIL",
		Short: "Grant admin rights to a registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			sqlDB, store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			u, err := services.NewUserService(store, logger).MakeAdmin(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("make admin %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", u.Email)
			return nil
		},
	}
}
