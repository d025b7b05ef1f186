package transport

import (
	"context"
	"fmt"

	"filecast/internal/config"
)

// NewClient creates the Client selected by cfg.Transport.Provider
func NewClient(ctx context.Context, cfg *config.Config, userID string) (Client, error) {
	switch cfg.Transport.Provider {
	case config.ProviderPubNub:
		return NewPubNubClient(&cfg.Transport.PubNub, userID), nil
	case config.ProviderFirebase:
		client, err := NewFirebaseClient(ctx, &cfg.Transport.Firebase, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase client: %w", err)
		}
		return client, nil
	case config.ProviderMemory:
		return NewMemoryClient(userID), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Transport.Provider)
	}
}
