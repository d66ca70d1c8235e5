// Package registry builds the backend variant matching the configured API
// type. Protocol selection happens here, once, instead of branching inside
// the engine.
package registry

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"voxpost/internal/backends"
	"voxpost/internal/backends/ollama"
	"voxpost/internal/backends/openaicompat"
	"voxpost/internal/config"
)

type BuildOptions struct {
	APIType    config.APIType
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func Build(opts BuildOptions) (backends.Backend, error) {
	switch opts.APIType {
	case config.APITypeOllama:
		return ollama.New(ollama.Config{
			BaseURL:    opts.Endpoint,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}), nil
	case config.APITypeOpenAICompatible:
		return openaicompat.New(openaicompat.Config{
			BaseURL:    opts.Endpoint,
			APIKey:     opts.APIKey,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported api type %q", opts.APIType)
	}
}
