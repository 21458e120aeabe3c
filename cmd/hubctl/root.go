package main

import (
	"os"

	"github.com/spf13/cobra"
)

func defaultServer() string {
	if v := os.Getenv("HUBD_SERVER"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func newRootCmd() *cobra.Command {
	var server string
	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "Client for the hubd resolution daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&server, "server", defaultServer(), "hubd base URL")

	client := &apiClient{base: &server}
	root.AddCommand(
		newResolveCmd(client),
		newPullCmd(client),
		newModelsCmd(client),
		newRemoveCmd(client),
		newBackendsCmd(client),
		newStatusCmd(client),
	)
	return root
}
