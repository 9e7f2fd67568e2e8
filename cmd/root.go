package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"siteguard/internal/version"
	"siteguard/pkg/log"
)

var (
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   version.APP,
	Short: "siteguard watches construction sites for missing PPE",
	Long: `Video feeds, PPE compliance analysis and alerts for construction sites.
Version: ` + version.VERSION + `/` + version.COMMIT,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.InitLog(logLevel)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "etc/config.yaml", "Path to config file")

	rootCmd.AddCommand(serveCommand)
	rootCmd.AddCommand(watchCommand)
	rootCmd.AddCommand(analyzeCommand)
	rootCmd.AddCommand(consumeCommand)
	rootCmd.AddCommand(toolsCmd)
}
