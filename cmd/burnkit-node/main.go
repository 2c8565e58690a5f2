package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/proofofburn/burnkit/api"
	"github.com/proofofburn/burnkit/config"
	"github.com/proofofburn/burnkit/crypto/signatures/ethereum"
	"github.com/proofofburn/burnkit/db/metadb"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/service"
	"github.com/proofofburn/burnkit/session"
	"github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/web3"
	"github.com/proofofburn/burnkit/workers"
)

// sessionCacheSize bounds the number of open wallet sessions.
const sessionCacheSize = 10_000

// Services holds all the running services
type Services struct {
	Storage    *storage.Storage
	Chain      *web3.Chain
	Searches   *workers.SearchManager
	Proofs     *workers.ProofManager
	BalanceMon *service.BalanceMonitor
	API        *service.APIService
}

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting burnkit-node", "version", Version)

	// Validate configuration
	network, err := validateConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup services
	services, err := setupServices(ctx, cfg, network)
	if err != nil {
		shutdownServices(services)
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services. On error the
// services started so far are returned so they can be shut down.
func setupServices(ctx context.Context, cfg *Config, network config.Network) (*Services, error) {
	services := &Services{}

	// Initialize storage database
	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", cfg.DB.Type)
	storagedb, err := metadb.New(cfg.DB.Type, cfg.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	// Start the burn key search workers
	log.Infow("starting search manager",
		"workers", cfg.Search.Workers,
		"maxIterations", cfg.Search.MaxIterations)
	services.Searches = workers.NewSearchManager(services.Storage, workers.SearchConfig{
		Workers:       cfg.Search.Workers,
		MaxIterations: cfg.Search.MaxIterations,
	})
	if err := services.Searches.Start(ctx); err != nil {
		return services, fmt.Errorf("failed to start search manager: %w", err)
	}

	// Initialize web3 access
	if cfg.Web3.Offline {
		log.Warnw("running offline, balance, nullifier and mint operations are disabled")
	} else {
		log.Infow("initializing web3", "network", network.Name, "rpc", cfg.Web3.Rpc)
		services.Chain, err = web3.New(network, cfg.Web3.Rpc)
		if err != nil {
			return services, fmt.Errorf("failed to initialize web3 client: %w", err)
		}
		if cfg.Web3.PrivKey != "" {
			signer, err := ethereum.NewSignerFromHex(cfg.Web3.PrivKey)
			if err != nil {
				return services, fmt.Errorf("failed to set account private key: %w", err)
			}
			services.Chain.SetSigner(signer)
			log.Infow("mint broadcaster ready", "account", signer.Address().Hex())
		}
	}

	// Start the proof manager
	if !cfg.Prover.Disabled {
		client, err := proofservice.NewClient(cfg.Prover.URL)
		if err != nil {
			return services, fmt.Errorf("failed to initialize proof service client: %w", err)
		}
		client.PollInterval = cfg.Prover.Poll
		proofCfg := workers.ProofConfig{Network: network.Name}
		if cfg.Prover.VKey != "" {
			if proofCfg.VerificationKey, err = os.ReadFile(cfg.Prover.VKey); err != nil {
				return services, fmt.Errorf("failed to read verification key: %w", err)
			}
		}
		log.Infow("starting proof manager",
			"url", cfg.Prover.URL,
			"poll", cfg.Prover.Poll.String(),
			"localVerification", proofCfg.VerificationKey != nil)
		services.Proofs = workers.NewProofManager(services.Storage, client, proofCfg)
		if err := services.Proofs.Start(ctx); err != nil {
			return services, fmt.Errorf("failed to start proof manager: %w", err)
		}
	}

	// Start balance monitor
	if services.Chain != nil && cfg.Monitor.Interval > 0 {
		log.Infow("starting balance monitor", "interval", cfg.Monitor.Interval.String())
		services.BalanceMon = service.NewBalanceMonitor(services.Chain, services.Storage, cfg.Monitor.Interval)
		if err := services.BalanceMon.Start(ctx); err != nil {
			return services, fmt.Errorf("failed to start balance monitor: %w", err)
		}
	}

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(api.APIConfig{
		Host:            cfg.API.Host,
		Port:            cfg.API.Port,
		Storage:         services.Storage,
		Sessions:        session.NewManager(sessionCacheSize, cfg.Session.TTL),
		Searches:        services.Searches,
		Proofs:          services.Proofs,
		Chain:           services.Chain,
		Network:         network,
		MinZeroBytes:    cfg.Search.MinZeroBytes,
		ProvingEndpoint: cfg.Prover.URL,
	}, false)
	if err := services.API.Start(ctx); err != nil {
		return services, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("burnkit-node is running, ready to derive burn keys!")
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.API != nil {
		services.API.Stop()
	}
	if services.BalanceMon != nil {
		services.BalanceMon.Stop()
	}
	if services.Proofs != nil {
		services.Proofs.Stop()
	}
	if services.Chain != nil {
		services.Chain.Close()
	}
	if services.Searches != nil {
		services.Searches.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
	log.Info("all services stopped")
}
