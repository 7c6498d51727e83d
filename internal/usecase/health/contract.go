package health

import "context"

// CachePinger checks geocode cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Recognizer reports whether an entity recognizer can serve requests.
type Recognizer interface {
	Name() string
	Available() bool
}
