package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kwhite/recaptcha-classic/config"
	"github.com/kwhite/recaptcha-classic/logger"
	"github.com/kwhite/recaptcha-classic/pkg/recaptcha"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var solveOutput string

// solveCmd represents the solve command
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "fetch a challenge, prompt for the answer, and verify it",
	Long:  `fetch a challenge, prompt for the answer, and verify it`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New(viper.GetViper())
		if err != nil {
			return err
		}

		log := logger.New(c.LogLevel)
		ctx := logger.WithContext(cmd.Context(), log)

		solver := recaptcha.NewSolver(newCaptchaClient(c), recaptcha.Config{
			PublicKey:  c.Captcha.PublicKey,
			PrivateKey: c.Captcha.PrivateKey,
		})

		shown := make(chan bool, 1)
		if err := solver.ShowChallenge(ctx, func(ok bool) { shown <- ok }); err != nil {
			return err
		}
		if !<-shown {
			return errors.New("could not fetch a challenge")
		}

		data, err := displayImage(solver.Session())
		if err != nil {
			return err
		}
		if err := os.WriteFile(solveOutput, data, 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "challenge written to %s\nanswer: ", solveOutput)

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil {
			return err
		}

		verified := make(chan bool, 1)
		if err := solver.VerifyAnswer(ctx, strings.TrimSpace(line), func(ok bool) { verified <- ok }); err != nil {
			return err
		}

		if <-verified {
			fmt.Fprintln(cmd.OutOrStdout(), "verification succeeded")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), "verification failed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVarP(&solveOutput, "output", "o", "captcha.png", "file to write the challenge image to")
}
