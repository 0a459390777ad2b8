package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/milhouse/contextmem/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the resolved configuration to disk",
	Long: `Resolve the configuration from defaults, the config file and the
environment, validate it and write the result back to the config file.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("Configuration saved.")
	fmt.Println("You can now run the engine with: contextmem serve")

	return nil
}
