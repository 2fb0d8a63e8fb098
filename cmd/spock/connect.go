package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/chenesan/SpockBot/pkg/spock"
)

var (
	connectHost     string
	connectPort     int
	connectUsername string
	connectBufSize  int
	connectStayUp   bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect and log in to a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := spock.DefaultConfig()
		cfg.Host = connectHost
		cfg.Port = connectPort
		cfg.BufSize = connectBufSize
		cfg.SockQuit = !connectStayUp
		cfg.Logger = log.New(os.Stdout, "", log.LstdFlags)

		client, err := spock.New(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		client.Bus().On(spock.EventState, func(ev spock.Event) {
			cfg.Logger.Printf("protocol state: %s", ev.State)
		})
		client.Bus().On(spock.EventDisconnect, func(ev spock.Event) {
			cfg.Logger.Printf("disconnect: %s", ev.Reason)
		})

		if err := client.Connect(); err != nil {
			return err
		}
		if err := client.StartLogin(connectUsername); err != nil {
			return err
		}
		return client.Run(context.Background())
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectHost, "host", "localhost", "server host")
	connectCmd.Flags().IntVar(&connectPort, "port", 25565, "server port")
	connectCmd.Flags().StringVar(&connectUsername, "username", "spock", "login username")
	connectCmd.Flags().IntVar(&connectBufSize, "bufsize", 4096, "receive buffer size")
	connectCmd.Flags().BoolVar(&connectStayUp, "stay-up", false, "keep the event loop alive after a socket failure")
	rootCmd.AddCommand(connectCmd)
}
