// Package devauth is a development stand-in for the timesheet credential
// endpoint. It serves POST /auth/token against a TOML user list with argon2id
// password hashes and issues tokens carrying sub, role, id and exp.
package devauth
