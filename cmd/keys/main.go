// Command keys administra la clave de firma EdDSA del servicio.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
)

func main() {
	root := &cobra.Command{
		Use:   "keys",
		Short: "Administra la clave de firma del identity provider",
	}
	root.AddCommand(generateCmd(), showCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave Ed25519 nueva",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s ya existe (usar --force para reemplazar)", out)
			}
			kp, err := jwtx.GenerateKeypair()
			if err != nil {
				return err
			}
			if err := jwtx.Save(out, kp); err != nil {
				return err
			}
			fmt.Printf("clave generada: kid=%s -> %s\n", kp.KID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "./data/signing.key.json", "archivo destino")
	cmd.Flags().BoolVar(&force, "force", false, "sobrescribe la clave existente")
	return cmd
}

func showCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Muestra la clave pública como JWKS",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := jwtx.LoadOrGenerate(path)
			if err != nil {
				return err
			}
			iss := jwtx.NewIssuer("", kp)
			doc, err := iss.JWKSJSON()
			if err != nil {
				return err
			}
			var pretty map[string]any
			if err := json.Unmarshal(doc, &pretty); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}
	cmd.Flags().StringVar(&path, "key-file", "./data/signing.key.json", "archivo de clave")
	return cmd
}
