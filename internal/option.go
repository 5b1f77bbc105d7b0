package internal

import "github.com/starford/raido/internal/graph"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	graph  graph.Graph
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithGraph sets the scene graph the session operates on. When omitted
// the application runs against an in-memory graph, which is what the
// standalone server uses; an embedding host passes its own adapter.
func WithGraph(g graph.Graph) Option {
	return func(a *application) {
		a.graph = g
	}
}
