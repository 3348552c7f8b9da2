package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"semnotes/config"
)

// Version is reported by the MCP server and --version.
var Version = "dev"

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	ownerID string
)

var rootCmd = &cobra.Command{
	Use:   "semnotes",
	Short: "Semantic notes - capture notes and find them by meaning",
	Long: `semnotes captures short text notes, embeds them into vectors and
searches them by meaning rather than by keyword.

Example usage:
  semnotes capture "I love building AI products"   # Save a note
  semnotes search "AI"                             # Find related notes
  semnotes serve                                   # Run the HTTP API
  semnotes mcp                                     # Run as an MCP server`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./semnotes.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVarP(&ownerID, "owner", "o", defaultOwner(), "owner of the notes (default is $SEMNOTES_OWNER or $USER)")
}

func defaultOwner() string {
	if v := os.Getenv("SEMNOTES_OWNER"); v != "" {
		return v
	}
	return os.Getenv("USER")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

// GetRootDir returns the data root directory.
func GetRootDir() string {
	return rootDir
}
