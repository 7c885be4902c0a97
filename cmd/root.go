package cmd

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kwhite/recaptcha-classic/pkg/recaptcha"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recaptcha-classic",
	Short: "A client for the legacy reCAPTCHA image challenge protocol",
	Long:  "A client for the legacy reCAPTCHA image challenge protocol",
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (json or yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetEnvPrefix("RECAPTCHA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	viper.AutomaticEnv()

	viper.SetDefault("logLevel", slog.LevelInfo)
	viper.SetDefault("endpoint", recaptcha.DefaultEndpoint)

	viper.SetDefault("captcha.publicKey", "")
	viper.SetDefault("captcha.privateKey", "")
	viper.SetDefault("captcha.languageCode", "")
	viper.SetDefault("captcha.timeout", time.Second*30)

	viper.SetDefault("server.host", "")
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.signingKey", "")
	viper.SetDefault("server.sessionDuration", time.Hour*3)
	viper.SetDefault("server.challengeDuration", time.Minute*10)
}
