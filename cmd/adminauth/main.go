// adminauth es el servicio de autenticación de administradores del back
// office.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	// .env es opcional: en producción todo llega por entorno real.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "adminauth",
		Short:        "Servicio de autenticación y sesiones de administradores",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "ruta al config.yaml (opcional)")
	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
