package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "talkback-cli",
		Short: "Talkback Relay CLI",
		Long:  `A command-line tool to talk through a camera's speaker via the talkback relay.`,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "ws://localhost:8090/ws", "Relay gateway WebSocket URL")

	rootCmd.AddCommand(speakCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
