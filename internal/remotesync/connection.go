// Package remotesync implements RemoteSync (spec component C10): a
// store-and-forward synchronizer that replicates LocalStore tables and
// staged audio files to a remote MongoDB document store, plus the
// device-status document heartbeat. Grounded on
// original_source/src/database/mongodb/{connection_handler,
// data_sync_manager, audio_transfer, microphone_details}.py.
package remotesync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/robudan/acoustic-logger/internal/errors"
)

// Connection manages the lifecycle of the shared Mongo client: connect
// with exponential backoff, a ping-based liveness monitor, and reconnect
// on loss. Grounded on connection_handler.py's ConnectionHandler, but
// reimplemented as a single goroutine driving a context-scoped retry
// loop instead of an asyncio.Event/Lock pair (message passing instead of
// shared mutable event objects).
type Connection struct {
	uri string
	log *slog.Logger

	mu        sync.RWMutex
	client    *mongo.Client
	connected bool

	readyCh chan struct{}
	once    sync.Once
}

// NewConnection returns a Connection bound to uri. Call Run to start the
// connect/monitor loop.
func NewConnection(uri string, log *slog.Logger) *Connection {
	if log == nil {
		log = slog.Default()
	}
	return &Connection{uri: uri, log: log.With("service", "remotesync.connection"), readyCh: make(chan struct{})}
}

// Run connects (retrying with capped exponential backoff) and then
// monitors the connection with periodic pings, reconnecting on failure,
// until ctx is cancelled.
func (c *Connection) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.connect(ctx); err != nil {
			return
		}
		c.monitor(ctx)
	}
}

func (c *Connection) connect(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri).SetMaxPoolSize(120))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = client.Ping(pingCtx, readpref.Primary())
			cancel()
		}

		if err == nil {
			c.mu.Lock()
			c.client = client
			c.connected = true
			c.mu.Unlock()
			c.markReady()
			c.log.Info("connected to remote store")
			return nil
		}

		c.log.Warn("remote store connection failed", "attempt", attempt, "error", err)
		attempt++
		sleepFor := time.Duration(1<<uint(attempt)) * time.Second
		if sleepFor > 60*time.Second {
			sleepFor = 60 * time.Second
		}
		timer := time.NewTimer(sleepFor)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// monitor pings every 6s (original's cadence) and returns once the
// connection is lost, so Run can re-enter connect.
func (c *Connection) monitor(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.disconnect(ctx)
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
			err := c.Client().Ping(pingCtx, readpref.Primary())
			cancel()
			if err != nil {
				c.log.Warn("lost connection to remote store, reconnecting", "error", err)
				c.disconnect(ctx)
				return
			}
		}
	}
}

func (c *Connection) disconnect(ctx context.Context) {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.connected = false
	c.mu.Unlock()
	if client != nil {
		_ = client.Disconnect(ctx)
	}
}

func (c *Connection) markReady() {
	c.once.Do(func() { close(c.readyCh) })
}

// Ready returns a channel closed once the first successful connection
// has been established.
func (c *Connection) Ready() <-chan struct{} { return c.readyCh }

// Client returns the current Mongo client, or nil if not connected.
func (c *Connection) Client() *mongo.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Connected reports whether a live connection is currently established.
func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func wrapMongoErr(err error, op, target string) error {
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("remotesync").
		Category(errors.CategoryRemote).
		Context("op", op).
		Context("target", target).
		Build()
}
