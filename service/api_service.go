package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/proofofburn/burnkit/api"
	"github.com/proofofburn/burnkit/log"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	conf   api.APIConfig
	API    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAPI creates a new APIService instance serving conf.
func NewAPI(conf api.APIConfig, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{conf: conf}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, as.cancel = context.WithCancel(ctx)

	conf := as.conf
	var err error
	as.API, err = api.New(ctx, &conf)
	if err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.conf.Host, as.conf.Port
}
