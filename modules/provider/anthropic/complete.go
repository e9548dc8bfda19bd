package anthropic

import (
	"context"

	"github.com/flemzord/aether/internal/provider"
)

// Complete sends a completion request to the Anthropic Messages API.
func (a *Anthropic) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	msg, err := a.client.Messages.New(ctx, convertRequest(req, &a.config))
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	return convertResponse(msg), nil
}
