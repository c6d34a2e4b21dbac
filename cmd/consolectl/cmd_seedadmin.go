package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/rbac"
	"github.com/ncecere/tenant_console/internal/services/audit"
	"github.com/ncecere/tenant_console/internal/store"
)

const actionBootstrap = "user.bootstrap"

func newSeedAdminCmd() *cobra.Command {
	var (
		email      string
		name       string
		password   string
		role       string
		superAdmin bool
	)
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or promote an administrator with a local password",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}
			generated := password == ""
			if generated {
				var err error
				if password, err = auth.GeneratePassword(24); err != nil {
					return err
				}
			}
			parsedRole, ok := rbac.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := store.NewServiceRoleClient(cfg.Store)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			user, err := client.GetUserByEmail(ctx, email)
			switch {
			case errors.Is(err, store.ErrNotFound):
				user, err = client.CreateUser(ctx, store.CreateUserParams{
					Email:        email,
					Name:         name,
					Role:         parsedRole,
					IsSuperAdmin: superAdmin,
				})
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
			case err != nil:
				return fmt.Errorf("lookup user: %w", err)
			default:
				if err := client.SetUserRole(ctx, user.ID, parsedRole); err != nil {
					return fmt.Errorf("set role: %w", err)
				}
				if superAdmin && !user.IsSuperAdmin {
					if err := client.SetUserSuperAdmin(ctx, user.ID, true); err != nil {
						return fmt.Errorf("set super admin: %w", err)
					}
				}
			}

			tokens, err := auth.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.AccessTokenTTL, cfg.Session.RefreshTokenTTL, cfg.Session.Issuer)
			if err != nil {
				return err
			}
			svc, err := auth.NewService(auth.ServiceOptions{Config: cfg.Auth, Store: client, Tokens: tokens, Logger: newLogger(cfg)})
			if err != nil {
				return err
			}
			if err := svc.SetLocalPassword(ctx, user.ID, user.Email, password); err != nil {
				return fmt.Errorf("set password: %w", err)
			}

			if err := audit.NewRecorder(client).Record(ctx, uuid.Nil, actionBootstrap, "user", user.ID.String(), map[string]any{
				"email":       user.Email,
				"role":        string(parsedRole),
				"super_admin": superAdmin || user.IsSuperAdmin,
			}); err != nil {
				return fmt.Errorf("record audit entry: %w", err)
			}

			out := map[string]any{
				"id":    user.ID.String(),
				"email": user.Email,
				"role":  string(parsedRole),
			}
			if generated {
				out["password"] = password
			}
			return printValue(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Administrator email")
	cmd.Flags().StringVar(&name, "name", "", "Display name for a new user")
	cmd.Flags().StringVar(&password, "password", "", "Local login password; generated and printed when empty")
	cmd.Flags().StringVar(&role, "role", string(rbac.RoleAdmin), "Role: owner|admin|viewer|user")
	cmd.Flags().BoolVar(&superAdmin, "super-admin", false, "Grant the super admin flag")
	return cmd
}
