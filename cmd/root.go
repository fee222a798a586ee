package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KatnessChen/MaraMap-Backend/internal/buildinfo"
	"github.com/KatnessChen/MaraMap-Backend/internal/config"
	"github.com/KatnessChen/MaraMap-Backend/internal/logging"
)

// global flags
var (
	userConfig string
	cfgFile    string
)

const (
	ServerURLKey = "server"
	TokenKey     = "token"
)

var f = NewFactory()

var rootCmd = &cobra.Command{
	Use:   "maramap",
	Short: fmt.Sprintf("MaraMap ingestion backend (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
	Long: `MaraMap accepts social media posts from authenticated users and stores
each submission exactly once for later processing.

Callers authenticate with a bearer token issued by the identity provider;
tokens are verified against the provider's published signing keys.`,
	Version: buildinfo.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, configErr := initConfig()
		logging.Init(nil)
		if configErr != nil { // handle error after logging is initialized
			return configErr
		}
		if configPath != "" {
			log.Debug().Msgf("using user config file: %s", configPath)
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		var quiet BeQuietError
		if !errors.As(err, &quiet) {
			log.Error().Err(err).Msg("execution failed")
		}
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	rootCmd.PersistentFlags().StringVar(&userConfig, "user-config", "",
		"User configuration file for default values (default is $HOME/.maramap.yaml)")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Server configuration file (YAML)")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag(logging.LevelKey, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	_ = viper.BindPFlag(logging.FormatKey, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	_ = viper.BindPFlag(logging.NoColorKey, rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.PersistentFlags().StringVar(&f.RemoteAddr, "server", "", "URL of a remote MaraMap server")
	_ = viper.BindPFlag(ServerURLKey, rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().StringVar(&f.Token, "token", "", "Bearer token for the remote server")
	_ = viper.BindPFlag(TokenKey, rootCmd.PersistentFlags().Lookup("token"))

	viper.SetEnvPrefix("MARAMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	viper.AutomaticEnv()
	config.BindEnv(viper.GetViper())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func initConfig() (string, error) {
	// reads in config file and ENV variables if set.
	if userConfig != "" {
		viper.SetConfigFile(userConfig)
	} else {
		// search order: current dir, $HOME, XDG config
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}

		configDir, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(configDir + "/maramap")
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".maramap")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
	} else {
		return viper.ConfigFileUsed(), nil
	}

	return "", nil
}
