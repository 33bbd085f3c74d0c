// Package auth verifies API bearer tokens against a static, configured token
// catalogue and resolves them to a Subject carrying permissions.
//
// Tokens may be configured in plain text or as a hex SHA-256 digest; both are
// compared in constant time against the digest of the presented token.
package auth
