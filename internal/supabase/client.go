// Package supabase adapts the Supabase platform to the portal: Postgres as
// the document store, Storage for attachments and GoTrue for sign-in.
package supabase

import (
	"design-portal-backend/internal/config"

	"github.com/supabase-community/supabase-go"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// Storage returns the attachment bucket configured for this deployment.
func (c *Client) Storage() *StorageClient {
	return NewStorageClient(c.Config.SupabaseURL, c.Config.SupabasePublishableKey, c.Config.SupabaseStorageBucket)
}

// Identity returns the GoTrue-backed identity provider.
func (c *Client) Identity() *AuthClient {
	return NewAuthClient(c.Supabase.Auth)
}
