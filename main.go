package main

import "github.com/kwhite/recaptcha-classic/cmd"

func main() {
	cmd.Execute()
}
