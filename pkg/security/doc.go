// Package security issues and verifies TLS certificates for the admin gRPC
// surface, satisfying the mTLS requirement on the inspection API.
package security
