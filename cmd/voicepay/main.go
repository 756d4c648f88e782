package main

import (
	"os"

	"voicepay/internal/cli"
	"voicepay/internal/config"
)

func main() {
	config.LoadDotEnv()
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
