package discovery

import "context"

// Registry publishes and looks up small values in a shared namespace.
type Registry interface {
	// Publish stores data under path for the lifetime of the session.
	Publish(path string, data []byte) error
	Lookup(path string) ([]byte, error)
	// Watch calls handler with the current value of path and again on every
	// change until ctx is done. A deleted node is reported as nil data.
	Watch(ctx context.Context, path string, handler func([]byte)) error
	Close() error
}

// EndpointResolver yields the engine base URL the coordinator should call.
type EndpointResolver interface {
	BaseURL() string
}

// StaticResolver always returns the same URL.
type StaticResolver string

func (s StaticResolver) BaseURL() string {
	return string(s)
}
