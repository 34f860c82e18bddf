package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/classify"
	"github.com/slotwise/slotwise/internal/gmail"
	"github.com/slotwise/slotwise/internal/google"
	"github.com/slotwise/slotwise/internal/logging"
	"github.com/slotwise/slotwise/internal/store"
)

// ServerContext holds the shared dependencies of the HTTP server and
// caches per-account Google API clients.
type ServerContext struct {
	ctx             context.Context
	cancel          context.CancelFunc
	store           *store.Store
	tokens          google.TokenProvider
	classifier      *classify.Classifier
	gmailClients    map[string]*gmail.Client
	calendarClients map[string]*calendar.Client
	mu              sync.RWMutex
	shutdown        bool
}

// NewServerContext creates a new server context. The store is optional;
// without one, tokens are read from the file cache. The classifier is
// optional as well, classification endpoints return an error when it is
// absent.
func NewServerContext(ctx context.Context, st *store.Store, classifier *classify.Classifier) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	var tokens google.TokenProvider
	if st != nil {
		tokens = google.NewStoreTokenProvider(st)
	} else {
		tokens = google.NewFileTokenProvider()
	}

	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		store:           st,
		tokens:          tokens,
		classifier:      classifier,
		gmailClients:    make(map[string]*gmail.Client),
		calendarClients: make(map[string]*calendar.Client),
	}
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Store returns the persistence layer, or nil when not configured.
func (sc *ServerContext) Store() *store.Store {
	return sc.store
}

// Classifier returns the meeting intent classifier, or nil when not
// configured.
func (sc *ServerContext) Classifier() *classify.Classifier {
	return sc.classifier
}

// TokenProvider returns the token provider used for Google API clients.
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	return sc.tokens
}

// GmailClientForAccount returns the Gmail client for an account,
// creating and caching it on first use.
func (sc *ServerContext) GmailClientForAccount(account string) (*gmail.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.gmailClients[account]; ok {
		return client, nil
	}

	client, err := gmail.NewClientForAccountWithProvider(sc.ctx, account, sc.tokens)
	if err != nil {
		slog.Warn("failed to create Gmail client", logging.Account(account), logging.Err(err))
		return nil, err
	}

	sc.gmailClients[account] = client
	return client, nil
}

// CalendarClientForAccount returns the Calendar client for an account,
// creating and caching it on first use.
func (sc *ServerContext) CalendarClientForAccount(account string) (*calendar.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[account]; ok {
		return client, nil
	}

	client, err := calendar.NewClientForAccountWithProvider(sc.ctx, account, sc.tokens)
	if err != nil {
		slog.Warn("failed to create Calendar client", logging.Account(account), logging.Err(err))
		return nil, err
	}

	sc.calendarClients[account] = client
	return client, nil
}

// ResetClientsForAccount drops any cached clients for an account, so
// the next request picks up freshly issued credentials.
func (sc *ServerContext) ResetClientsForAccount(account string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.gmailClients, account)
	delete(sc.calendarClients, account)
}

// IsShutdown returns whether the server context has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
