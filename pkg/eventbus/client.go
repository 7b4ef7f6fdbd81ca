// Copyright 2025 BPI Labs
//
// Package eventbus is the Firestore-backed publisher behind the
// core's subscribe_distribution_records and subscribe_settlement_events
// external interfaces. It generalizes the teacher's real-time UI sync
// client into a generic, domain-agnostic event sink: any component
// that owns a record it wants observable externally (PC distribution
// records, BM settlement events) publishes it as a Document under a
// collection path, the same enabled/no-op toggle the teacher uses so
// a node can run with Firestore sync off entirely.

package eventbus

import (
	"context"
	"fmt"
	"sync"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Client wraps a Firestore client used purely as an external sink for
// published events; it holds no domain knowledge of what it publishes.
type Client struct {
	mu        sync.RWMutex
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	enabled   bool
}

// Config configures a Client.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
}

// NewClient constructs a Client. When cfg.Enabled is false, the
// returned Client is a no-op sink: every Publish call succeeds
// without touching the network, useful for local development and
// tests.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{projectID: cfg.ProjectID, enabled: cfg.Enabled}
	if !cfg.Enabled {
		return c, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("eventbus: project id required when enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: init firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventbus: init firestore client: %w", err)
	}
	c.app = app
	c.firestore = fs
	return c, nil
}

// Close releases the underlying Firestore client, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

// IsEnabled reports whether this client actually writes to Firestore.
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// setDoc writes fields to collection/docID, a no-op when disabled.
func (c *Client) setDoc(ctx context.Context, collection, docID string, fields map[string]interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.enabled {
		return nil
	}
	if c.firestore == nil {
		return fmt.Errorf("eventbus: firestore client not initialized")
	}
	_, err := c.firestore.Collection(collection).Doc(docID).Set(ctx, fields)
	if err != nil {
		return fmt.Errorf("eventbus: write %s/%s: %w", collection, docID, err)
	}
	return nil
}
