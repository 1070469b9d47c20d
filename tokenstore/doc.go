// Package tokenstore persists the raw access token under a single durable key
// so a restarted process can hydrate its session.
//
// # Backends
//
//   - [Memory] keeps the token for the life of the process (tests, embedding).
//   - [File] writes the token to one file with 0600 permissions.
//   - [Redis] stores it under "<prefix>:<key>" through go-redis.
//
// # What this package must NOT do
//
//   - Decode or validate tokens.
//   - Log token values.
package tokenstore
