package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	runCmd "github.com/azckamp/lanetimer/pkg/cmd/run"
	"github.com/azckamp/lanetimer/pkg/config"
	"github.com/azckamp/lanetimer/version"
)

const envPrefix = "LANETIMER"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "lanetimer",
	Short:   "Race-timing lane client",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.lanetimer.yml)")

	rootCmd.PersistentFlags().StringVar(&config.ServerHost, "server-host",
		"scherm.azckamp.nl",
		"Hostname of the timing server")
	rootCmd.PersistentFlags().IntVar(&config.ServerPort, "server-port",
		443,
		"Port of the timing server")
	rootCmd.PersistentFlags().StringVar(&config.ServerPath, "server-path",
		"/ws",
		"Websocket path on the timing server")
	rootCmd.PersistentFlags().BoolVar(&config.UseTLS, "tls",
		true,
		"Connect via wss instead of ws")
	rootCmd.PersistentFlags().IntVar(&config.Lane, "lane",
		9,
		"Lane number of this device")
	rootCmd.PersistentFlags().StringVar(&config.Role, "role",
		"lane",
		"Device role: 'lane' (sends splits) or 'starter' (sends start commands)")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServer,
		"wait-for-server",
		"0s",
		"Duration to wait for the timing server on startup")

	// add commands here
	rootCmd.AddCommand(runCmd.NewRunCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".lanetimer" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lanetimer")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --server-host to LANETIMER_SERVER_HOST
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
