package app

import (
	"context"

	"github.com/dagwatch/dagwatch/external/openai"
	"github.com/dagwatch/dagwatch/internal/classifier"
)

// openaiProvider adapts the OpenAI client to the classifier provider
// contract.
type openaiProvider struct {
	client *openai.Client
}

func (p *openaiProvider) Enabled() bool {
	return p.client.Enabled()
}

func (p *openaiProvider) ClassifyFighter(ctx context.Context, name string) (classifier.Origin, error) {
	result, err := p.client.ClassifyFighter(ctx, name)
	if err != nil {
		return classifier.Origin{}, err
	}
	return classifier.Origin{
		Country:     result.Country,
		State:       result.State,
		IsDagestani: result.IsDagestani,
	}, nil
}
