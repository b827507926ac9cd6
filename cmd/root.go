package cmd

import (
	"errors"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fragpit/envoy-auth/internal/config"
)

var cfgFile string
var cfg *config.ClientConfig
var err error
var Debug bool
var version = "undefined"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "envoy-auth",
	Short: "Envoy token and client certificate service",
	Long: `
Envoy-auth allocates bearer tokens to tenants and exchanges them for client
TLS certificates issued by a Vault PKI backend.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) { //nolint:revive
		if Debug {
			log.SetLevel(log.DebugLevel)
			log.Info("Debug mode enabled")
			for key := range viper.GetViper().AllSettings() {
				log.WithFields(log.Fields{
					"key": key,
				}).Debug("Configuration key set")
			}
		}

		cfg, err = config.NewClientConfig()
		if err != nil {
			log.Fatalf("Error reading configuration: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $HOME/.envoy-auth/envoy-auth.yml)",
	)
	rootCmd.PersistentFlags().
		BoolVarP(&Debug, "debug", "d", false, "Enable debug mode (default: false)")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Error(err)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cmd, _, err := rootCmd.Find(os.Args[1:])
	if err != nil {
		log.Error(err)
		return
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home + "/.envoy-auth/")
		viper.SetConfigType("yaml")
		if cmd.Name() == "server" {
			viper.SetConfigName("envoy-auth.yml")
		} else {
			viper.SetConfigName("envoy-auth-client.yml")
		}
	}

	viper.SetEnvPrefix("EA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	err = viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Info("Using config file:", viper.ConfigFileUsed())
	case errors.As(err, &notFound):
		log.Warn("No config file found, using defaults and environment")
	default:
		log.Fatal(err)
	}
}
