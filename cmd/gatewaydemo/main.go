// Command gatewaydemo runs the bridge's HTTP surface: it loads the static
// gateway configuration, opens the configured storage backend, wires the
// gateway over it (instantiating it when no configuration is stored yet),
// and serves the gateway's user-facing operations over HTTP. It does not
// seed the SPV chain or the light client.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/gateway"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/gatewayhost"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/spv"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		network     = flag.String("network", "regtest", "Bitcoin network: mainnet, testnet, or regtest")
		databaseURL = flag.String("database-url", os.Getenv("GATEWAY_DATABASE_URL"), "Postgres connection string; empty uses an in-memory store")
	)
	flag.Parse()

	net, err := parseNetwork(*network)
	if err != nil {
		log.Fatalf("gatewaydemo: %v", err)
	}

	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("gatewaydemo: load config: %v", err)
	}

	kv, err := openStorage(*databaseURL)
	if err != nil {
		log.Fatalf("gatewaydemo: open storage: %v", err)
	}

	host := gatewayhost.Open(kv, net)
	if _, err := gateway.ReadConfig(kv); err != nil {
		deployTime := uint64(time.Now().Unix())
		if err := host.Gateway.Instantiate(cfg, 0, deployTime, []byte(cfg.Owner), []byte("gatewaydemo-genesis")); err != nil {
			log.Fatalf("gatewaydemo: instantiate gateway: %v", err)
		}
		log.Printf("gatewaydemo: instantiated a fresh gateway under owner %q", cfg.Owner)
	}

	handlers := gatewayhost.NewHandlers(host, net)
	mux := http.NewServeMux()
	mux.HandleFunc("/gateway/request-mint-address", handlers.HandleRequestMintAddress)
	mux.HandleFunc("/gateway/request-release-btc", handlers.HandleRequestReleaseBtc)
	mux.HandleFunc("/gateway/create-viewing-key", handlers.HandleCreateViewingKey)
	mux.HandleFunc("/gateway/release-btc-by-owner", handlers.HandleReleaseBtcByOwner)
	mux.HandleFunc("/health", handlers.HandleHealth)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("gatewaydemo: listening on %s (network=%s)", *addr, *network)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gatewaydemo: serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("gatewaydemo: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("gatewaydemo: shutdown: %v", err)
	}
}

func parseNetwork(s string) (spv.Network, error) {
	switch s {
	case "mainnet":
		return spv.Mainnet, nil
	case "testnet":
		return spv.Testnet, nil
	case "regtest":
		return spv.Regtest, nil
	default:
		return spv.Mainnet, &invalidNetworkError{s}
	}
}

type invalidNetworkError struct{ value string }

func (e *invalidNetworkError) Error() string {
	return "unknown network " + e.value + ": want mainnet, testnet, or regtest"
}

func openStorage(databaseURL string) (storage.KV, error) {
	if databaseURL == "" {
		log.Println("gatewaydemo: no GATEWAY_DATABASE_URL set, running with an in-memory store")
		return storage.NewMemoryKV(), nil
	}
	return storage.NewPostgresKV(storage.PostgresConfig{DatabaseURL: databaseURL}, log.New(os.Stderr, "[storage] ", log.LstdFlags))
}
