package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/adminauth/internal/config"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/store/pg"
)

// seedCmd crea el primer SUPER_ADMIN directamente activo. Es la única vía de
// alta que no pasa por invitación; se corre una vez al provisionar.
func seedCmd() *cobra.Command {
	var (
		emailFlag     string
		passwordFlag  string
		firstName     string
		lastName      string
		orgUnit       string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea el primer SUPER_ADMIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return fmt.Errorf("seed requiere postgres.dsn configurado")
			}

			emailFlag = strings.ToLower(strings.TrimSpace(emailFlag))
			if emailFlag == "" || passwordFlag == "" {
				return fmt.Errorf("--email y --password son obligatorios")
			}
			if ok, reasons := password.DefaultPolicy.Validate(passwordFlag); !ok {
				return fmt.Errorf("password no cumple la política: %s", strings.Join(reasons, ", "))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := pg.New(ctx, cfg.Postgres.DSN, pg.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer store.Close()

			hash, err := password.Hash(password.Default, passwordFlag)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			a := &core.Admin{
				ID:                   uuid.NewString(),
				Email:                emailFlag,
				PasswordHash:         &hash,
				FirstName:            firstName,
				LastName:             lastName,
				OrgUnit:              orgUnit,
				Role:                 core.RoleSuperAdmin,
				IsActive:             true,
				EmailVerified:        true,
				TwoFactorMethod:      core.TwoFactorNone,
				NotifyFailedLogin:    true,
				NotifyPasswordChange: true,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			if err := store.CreateAdmin(ctx, a); err != nil {
				return fmt.Errorf("crear super admin: %w", err)
			}
			fmt.Printf("SUPER_ADMIN creado: %s (%s)\n", a.Email, a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&emailFlag, "email", "", "email del super admin")
	cmd.Flags().StringVar(&passwordFlag, "password", "", "password inicial (cumple la política)")
	cmd.Flags().StringVar(&firstName, "first-name", "Admin", "nombre")
	cmd.Flags().StringVar(&lastName, "last-name", "Principal", "apellido")
	cmd.Flags().StringVar(&orgUnit, "org-unit", "", "unidad organizacional")
	return cmd
}
