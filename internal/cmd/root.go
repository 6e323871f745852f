package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/git2doc/internal/config"
)

// NewRootCmd builds the git2doc command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "git2doc",
		Short: "Generate documentation from GitHub repositories",
		Long: `git2doc is a client for the repository-to-documentation service.

Log in, submit a GitHub repository for documentation generation, follow
the job while the service works on it, and download the finished PDF.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/git2doc/config.yaml)")
	flags.String("base-url", "", "service base URL (overrides api.base_url)")
	flags.String("format", "", "output format: table, json or yaml (overrides output.format)")
	flags.Bool("no-color", false, "disable styled output")
	flags.Bool("debug", false, "log at debug level")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newDocsCmd())
	root.AddCommand(newArticlesCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	flags := cmd.Root().PersistentFlags()
	if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g., GIT2DOC_API_BASE_URL for api.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
	if noColor, _ := flags.GetBool("no-color"); noColor {
		viper.Set("output.color", false)
	}
	if debug, _ := flags.GetBool("debug"); debug {
		viper.Set("logging.level", "debug")
	}

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
	return nil
}
