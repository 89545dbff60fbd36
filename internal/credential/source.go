package credential

import (
	"context"
	"os"
	"strings"
)

// Source supplies a bearer token.
type Source interface {
	Token(ctx context.Context) (string, error)
}

type static string

// Static returns a Source that always yields token.
func Static(token string) Source {
	return static(strings.TrimSpace(token))
}

func (s static) Token(context.Context) (string, error) {
	return string(s), nil
}

type env string

// Env returns a Source that reads the named environment variable on every
// call.
func Env(name string) Source {
	return env(name)
}

func (e env) Token(context.Context) (string, error) {
	return strings.TrimSpace(os.Getenv(string(e))), nil
}

type chain []Source

// Chain returns a Source that asks each source in order and yields the first
// non-empty token. An error from one source is returned only if no later
// source has a token.
func Chain(sources ...Source) Source {
	var c chain
	for _, s := range sources {
		if s != nil {
			c = append(c, s)
		}
	}
	return c
}

func (c chain) Token(ctx context.Context) (string, error) {
	var firstErr error
	for _, s := range c {
		token, err := s.Token(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if token != "" {
			return token, nil
		}
	}
	return "", firstErr
}
