package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/50naija1/pizuna-app/internal/api"
	"github.com/50naija1/pizuna-app/internal/token"
)

func loginCmd(a *app) *cobra.Command {
	var phone, name string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain an auth token and store it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone == "" {
				return errors.New("--phone is required")
			}

			client := api.New(a.cfg.ServerURL, a.cfg.RequestTimeout, a.logger)
			resp, err := client.DemoAuth(cmd.Context(), phone, name)
			if err != nil {
				return err
			}
			if err := token.NewStore(a.cfg.TokenPath).Save(resp.Token); err != nil {
				return err
			}

			a.logger.Info().Str("user_id", resp.User.ID).Msg("logged in")
			fmt.Printf("Logged in as %s (%s)\n", resp.User.Name, resp.User.Phone)
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number to authenticate as")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored auth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := token.NewStore(a.cfg.TokenPath).Clear(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}
