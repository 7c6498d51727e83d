package domain

import "errors"

// Closed set of pipeline error kinds. Callers branch with errors.Is
// instead of matching message text.
var (
	// ErrCredentialInvalid signals an invalid or expired geocoding credential.
	ErrCredentialInvalid = errors.New("geocoding credential invalid or expired")
	// ErrGeocodeTransport signals a network-level geocoding failure.
	ErrGeocodeTransport = errors.New("geocoding transport failure")
	// ErrMalformedResponse signals an unparseable or error-bearing service response.
	ErrMalformedResponse = errors.New("malformed service response")
	// ErrNoCandidates signals that the geocoding service returned no candidates.
	ErrNoCandidates = errors.New("no geocoding candidates")
	// ErrRecognizerUnavailable signals a recognizer that cannot run (missing credentials, failed init).
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
)
