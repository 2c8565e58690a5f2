// Package api exposes burn key derivation and the proof flow of the burn
// keys over HTTP. Wallet scoped operations are authorized by a session
// opened with the wallet signature of the signing message.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/config"
	"github.com/proofofburn/burnkit/log"
	"github.com/proofofburn/burnkit/session"
	stg "github.com/proofofburn/burnkit/storage"
	"github.com/proofofburn/burnkit/web3"
	"github.com/proofofburn/burnkit/workers"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host     string
	Port     int
	Storage  *stg.Storage
	Sessions *session.Manager
	Searches *workers.SearchManager
	Proofs   *workers.ProofManager // Optional: enables the proof endpoints
	Chain    *web3.Chain           // Optional: enables balance, consumed and mint
	Network  config.Network
	// MinZeroBytes is the difficulty of searches that do not set one.
	MinZeroBytes int
	// ProvingEndpoint is reported by /info.
	ProvingEndpoint string
}

// API type represents the API HTTP server.
type API struct {
	router          *chi.Mux
	storage         *stg.Storage
	sessions        *session.Manager
	searches        *workers.SearchManager
	proofs          *workers.ProofManager
	chain           *web3.Chain
	network         config.Network
	minZeroBytes    int
	provingEndpoint string
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. The server is shut down when ctx is done.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	a, err := newAPI(conf)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("API server shutdown", "error", err.Error())
		}
	}()
	return a, nil
}

func newAPI(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Sessions == nil {
		return nil, fmt.Errorf("missing session manager")
	}
	if conf.Searches == nil {
		return nil, fmt.Errorf("missing search manager")
	}
	minZeroBytes := conf.MinZeroBytes
	if minZeroBytes == 0 {
		minZeroBytes = burnkey.DefaultMinZeroBytes
	}
	a := &API{
		storage:         conf.Storage,
		sessions:        conf.Sessions,
		searches:        conf.Searches,
		proofs:          conf.Proofs,
		chain:           conf.Chain,
		network:         conf.Network,
		minZeroBytes:    minZeroBytes,
		provingEndpoint: conf.ProvingEndpoint,
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, a.info)

	// sessions
	log.Infow("register handler", "endpoint", SessionsEndpoint, "method", "POST")
	a.router.Post(SessionsEndpoint, a.newSession)
	log.Infow("register handler", "endpoint", SessionEndpoint, "method", "DELETE")
	a.router.Delete(SessionEndpoint, a.closeSession)
	log.Infow("register handler", "endpoint", SessionBurnKeysEndpoint, "method", "POST")
	a.router.Post(SessionBurnKeysEndpoint, a.newSearch)

	// searches
	log.Infow("register handler", "endpoint", SearchEndpoint, "method", "GET")
	a.router.Get(SearchEndpoint, a.search)
	log.Infow("register handler", "endpoint", SearchEndpoint, "method", "DELETE")
	a.router.Delete(SearchEndpoint, a.cancelSearch)

	// burn key records
	log.Infow("register handler", "endpoint", WalletBurnKeysEndpoint, "method", "GET")
	a.router.Get(WalletBurnKeysEndpoint, a.burnKeys)
	log.Infow("register handler", "endpoint", WalletBurnKeyEndpoint, "method", "GET")
	a.router.Get(WalletBurnKeyEndpoint, a.burnKey)
	log.Infow("register handler", "endpoint", BurnKeyNullifierEndpoint, "method", "GET")
	a.router.Get(BurnKeyNullifierEndpoint, a.nullifier)
	log.Infow("register handler", "endpoint", BurnKeyBalanceEndpoint, "method", "POST")
	a.router.Post(BurnKeyBalanceEndpoint, a.refreshBalance)
	log.Infow("register handler", "endpoint", BurnAddressEndpoint, "method", "GET")
	a.router.Get(BurnAddressEndpoint, a.burnAddress)

	// proofs
	log.Infow("register handler", "endpoint", BurnKeyProofsEndpoint, "method", "POST")
	a.router.Post(BurnKeyProofsEndpoint, a.newProof)
	log.Infow("register handler", "endpoint", WalletProofsEndpoint, "method", "GET")
	a.router.Get(WalletProofsEndpoint, a.walletProofs)
	log.Infow("register handler", "endpoint", ProofEndpoint, "method", "GET")
	a.router.Get(ProofEndpoint, a.proof)
	log.Infow("register handler", "endpoint", ProofMintEndpoint, "method", "POST")
	a.router.Post(ProofMintEndpoint, a.mint)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
