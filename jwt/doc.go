// Package jwt decodes the access tokens returned by the authentication endpoint
// into their id, sub and role claims, and issues such tokens for development
// servers and tests.
//
// Decoding either verifies the signature (hs256, ed25519) or, with
// [MethodNone], only parses and validates the claims. In both modes exp, nbf,
// issuer and audience are validated and a token missing id, sub or role is
// rejected with [ErrMissingClaim].
package jwt
