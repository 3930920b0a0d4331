// File: cmd/relayd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// relayd is the device-addressable WebSocket relay daemon.

package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/momentics/relay-ws/internal/logging"
	"github.com/momentics/relay-ws/server"
	"github.com/momentics/relay-ws/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		bind           string
		port           int
		configPath     string
		logLevel       string
		logFormat      string
		allowAnonymous bool
	)

	cmd := &cobra.Command{
		Use:           "relayd",
		Short:         "Device-addressable WebSocket relay",
		Long:          "relayd accepts WebSocket connections identified by device, routes frames between devices, and pushes queued store messages to connected devices.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			if configPath != "" {
				loaded, err := server.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("bind") || cmd.Flags().Changed("port") {
				cfg.ListenAddr = net.JoinHostPort(bind, strconv.Itoa(port))
			}
			if cmd.Flags().Changed("allow-anonymous") {
				cfg.AllowAnonymous = allowAnonymous
			}

			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log := logging.New(logging.Config{
				Level:  level,
				Format: logging.Format(logFormat),
			})

			mem := store.NewMemory()
			srv := server.New(cfg,
				server.WithLogger(log),
				server.WithOutboundStore(mem),
				server.WithDeviceResolver(mem),
			)

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigs
				log.Info("shutting down", "signal", sig.String())
				if err := srv.Shutdown(); err != nil {
					log.Warn("shutdown", "error", err)
				}
			}()

			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "0.0.0.0", "bind IP address")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text|json)")
	cmd.Flags().BoolVar(&allowAnonymous, "allow-anonymous", false, "assign generated ids to connections without device identity")
	return cmd
}
