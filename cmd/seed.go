package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-inventory/app/mailer"
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the default ADMIN account if none exists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()

		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		svc, err := newServices(ctx, cfg, db, mailer.NewLogSender())
		if err != nil {
			return err
		}

		user, created, err := svc.accounts.SeedAdmin(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		if !created {
			logrus.WithField("user_id", user.ID).Info("Admin account already exists, nothing to do")
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"username": user.Username,
		}).Info("Admin account created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
}
