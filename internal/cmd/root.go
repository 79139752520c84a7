package cmd

import (
	"strings"

	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vitals",
	Short: "Run and agent session lifecycle tracker",
	Long: `Vitals tracks long-running operations through their lifecycle and
classifies streaming agent terminal output into idle, working, and
waiting states using per-agent pattern profiles.

It is the engine behind dashboards and window decorations that need to
know whether an agent is busy or blocked on input.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/vitals/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/vitals")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VITALS")
	// Replace dots with underscores for nested keys in env vars
	// e.g., VITALS_CLASSIFIER_WINDOW_SIZE for classifier.window_size
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
