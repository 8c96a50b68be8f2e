package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coredb/rpccore/internal/codec"
	"github.com/coredb/rpccore/internal/codec/cbor"
	"github.com/coredb/rpccore/internal/codec/flatbin"
	"github.com/coredb/rpccore/internal/codec/json"
	"github.com/coredb/rpccore/internal/codec/msgpack"
	"github.com/coredb/rpccore/internal/codec/revision"
	"github.com/coredb/rpccore/internal/config"
	"github.com/coredb/rpccore/internal/rpcconn"
	"github.com/coredb/rpccore/internal/transport"
)

// serveCmd wires the transport, codec, and connection-registry layers this
// module owns. The query engine, auth mutators, and GraphQL collaborator
// are pure interfaces (internal/engine) with no implementation here; a real
// deployment supplies them before calling transport.Factory.Handler.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RPC gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		codecs := codec.NewRegistry(
			json.New(),
			cbor.New(),
			msgpack.New(),
			flatbin.New(),
			revision.New(),
		)

		factory := &transport.Factory{
			Codecs:           codecs,
			Caps:             cfg.Capabilities(),
			Connections:      rpcconn.NewRegistry(),
			TxnQuotaPerScope: cfg.TxnQuotaPerScope,
			PingInterval:     cfg.PingInterval,
			OutboundCapacity: cfg.OutboundCapacity,
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/rpc", factory.Handler())

		server := &http.Server{Addr: cfg.Listen, Handler: mux}

		serveErr := make(chan error, 1)
		go func() { serveErr <- server.ListenAndServe() }()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		fmt.Printf("rpccore listening on %s\n", cfg.Listen)

		select {
		case err := <-serveErr:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-sig:
			fmt.Println("shutting down...")
			factory.Shutdown(10 * time.Second)
			return server.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
