package cmd

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/kwhite/recaptcha-classic/config"
	"github.com/kwhite/recaptcha-classic/logger"
	"github.com/kwhite/recaptcha-classic/pkg/token"
	"github.com/kwhite/recaptcha-classic/server"
	"github.com/kwhite/recaptcha-classic/template"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the captcha demo gateway",
	Long:  `serve the captcha demo gateway`,
	Run: func(cmd *cobra.Command, args []string) {
		c, err := config.New(viper.GetViper())
		if err != nil {
			log.Fatal(err)
		}

		slogger := logger.New(c.LogLevel)

		templateStore, err := template.NewStore()
		if err != nil {
			log.Fatal(err)
		}

		tokenService := token.NewService(c.Server.SigningKey, c.Server.SessionDuration)

		rateLimiter := server.NewRateLimiter(10, 20)

		newCaptcha := func() server.Captcha {
			return newCaptchaClient(c)
		}

		srv := server.New(slogger, templateStore, rateLimiter, tokenService, newCaptcha,
			c.Captcha.PublicKey, c.Captcha.PrivateKey,
			c.Server.Host, c.Server.Port, c.Server.ChallengeDuration)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Fatal(srv.Serve(ctx))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
