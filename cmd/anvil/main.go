// The anvil command is the main entrypoint for running the server, along with
// tools for inspecting its traffic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:          "anvil",
		Short:        "anvil game server and related tools",
		RunE:         ServerCommand,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing the server config file")

	sniffCmd.Flags().StringVarP(&PcapFileFlag, "file", "f", "", "Packet capture (pcap) to decode")
	sniffCmd.Flags().Uint16VarP(&PortFlag, "port", "p", 25565, "Port the server was listening on")
	sniffCmd.Flags().BoolVarP(&VerboseFlag, "verbose", "v", false, "Dump decoded fields and raw bytes of every packet")
	_ = sniffCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(sniffCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
