// Package sessionguard holds the client-side authentication state of the
// timesheet front end: the access token, the identity decoded from it, and the
// login/logout lifecycle that keeps both in step with durable storage.
//
// A [Session] is built once with [Builder], hydrated once with
// [Session.Hydrate], and then shared by everything that needs auth state. The
// navigation guard in package guard only reads it.
//
// # Invariants
//
//   - An identity is present only while the token it was decoded from is held.
//   - A token that fails to decode (malformed, expired, missing id/sub/role,
//     bad signature when verification is configured) is dropped together with
//     its persisted copy. Callers never see that failure as an error.
//   - Login does not touch session state until the endpoint has answered.
//
// # Architecture boundaries
//
// Token decoding lives in package jwt, the credential exchange in authclient,
// persistence in tokenstore. This package wires them, logs through logrus, and
// reports metrics and audit events. It does NOT render views or decide
// navigation.
package sessionguard
