// Command seed registra datos iniciales (scopes, applications, users) en la
// base configurada. Pensado para entornos de desarrollo y staging.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/dearjane/internal/config"
	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/security/password"
	"github.com/dropDatabas3/dearjane/internal/store"
	storepg "github.com/dropDatabas3/dearjane/internal/store/adapters/pg"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "seed",
		Short: "Registra datos iniciales del identity provider",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta al config YAML")

	root.AddCommand(scopeCmd(), appCmd(), userCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDAL(ctx context.Context) (store.DataAccessLayer, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver != "postgres" {
		return nil, fmt.Errorf("seed requiere storage.driver=postgres (actual: %s)", cfg.Storage.Driver)
	}
	return storepg.Open(ctx, cfg.Storage.DSN)
}

func scopeCmd() *cobra.Command {
	var description string
	var resources []string

	cmd := &cobra.Command{
		Use:   "scope <name>",
		Short: "Crea o actualiza un scope y sus resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dal, err := openDAL(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dal.Close() }()

			if err := dal.Scopes().Upsert(ctx, repository.Scope{
				Name:        args[0],
				Description: description,
				Resources:   resources,
			}); err != nil {
				return err
			}
			fmt.Printf("scope %q listo (resources: %s)\n", args[0], strings.Join(resources, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "descripción del scope")
	cmd.Flags().StringSliceVar(&resources, "resource", nil, "resource habilitado por el scope (repetible)")
	return cmd
}

func appCmd() *cobra.Command {
	var (
		displayName string
		appType     string
		secret      string
		consent     string
		redirects   []string
		postLogouts []string
		scopes      []string
		grantTypes  []string
	)

	cmd := &cobra.Command{
		Use:   "app <client_id>",
		Short: "Registra un client application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dal, err := openDAL(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dal.Close() }()

			app, err := dal.Applications().Create(ctx, repository.ApplicationInput{
				ClientID:               args[0],
				DisplayName:            displayName,
				Type:                   appType,
				Secret:                 secret,
				ConsentType:            repository.ConsentType(consent),
				RedirectURIs:           redirects,
				PostLogoutRedirectURIs: postLogouts,
				Scopes:                 scopes,
				GrantTypes:             grantTypes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("application %q creado (id: %s)\n", app.ClientID, app.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringVar(&appType, "type", repository.ApplicationTypePublic, "public | confidential")
	cmd.Flags().StringVar(&secret, "secret", "", "client secret (solo confidential)")
	cmd.Flags().StringVar(&consent, "consent", string(repository.ConsentExplicit), "implicit | explicit | external | systematic")
	cmd.Flags().StringSliceVar(&redirects, "redirect", nil, "redirect URI (repetible)")
	cmd.Flags().StringSliceVar(&postLogouts, "post-logout", nil, "post-logout redirect URI (repetible)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scope permitido (repetible)")
	cmd.Flags().StringSliceVar(&grantTypes, "grant", nil, "grant type permitido (repetible; vacío = todos)")
	return cmd
}

func userCmd() *cobra.Command {
	var (
		emailAddr string
		name      string
		phone     string
		roles     []string
		pass      string
	)

	cmd := &cobra.Command{
		Use:   "user <username>",
		Short: "Crea un usuario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pass == "" {
				return fmt.Errorf("--password es obligatorio")
			}
			ctx := cmd.Context()
			dal, err := openDAL(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dal.Close() }()

			hash, err := password.Hash(pass)
			if err != nil {
				return err
			}
			user, err := dal.Users().Create(ctx, repository.CreateUserInput{
				Username:     args[0],
				Email:        emailAddr,
				Name:         name,
				PhoneNumber:  phone,
				Roles:        roles,
				PasswordHash: hash,
			})
			if err != nil {
				return err
			}
			fmt.Printf("user %q creado (id: %s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&emailAddr, "email", "", "email")
	cmd.Flags().StringVar(&name, "name", "", "nombre completo")
	cmd.Flags().StringVar(&phone, "phone", "", "teléfono")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "rol (repetible)")
	cmd.Flags().StringVar(&pass, "password", "", "password inicial")
	return cmd
}
