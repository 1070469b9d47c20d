package sessionguard

import (
	"errors"

	"github.com/MrEthical07/sessionguard/authclient"
	"github.com/MrEthical07/sessionguard/tokenstore"
)

var (
	// ErrInvalidCredentials is returned by Login when the endpoint rejects the credentials.
	ErrInvalidCredentials = authclient.ErrInvalidCredentials
	// ErrAuthUnavailable is returned by Login when the endpoint cannot be reached.
	ErrAuthUnavailable = authclient.ErrUnavailable
	// ErrMalformedResponse is returned by Login when the endpoint answers without a token.
	ErrMalformedResponse = authclient.ErrMalformedResponse
	// ErrTokenInvalid is returned by Login when the issued token does not decode.
	ErrTokenInvalid = errors.New("issued token invalid")
	// ErrStoreUnavailable wraps token persistence failures surfaced by Hydrate.
	ErrStoreUnavailable = tokenstore.ErrUnavailable
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
