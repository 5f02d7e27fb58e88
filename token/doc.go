// Package token reads and issues the JWT bearer tokens used by authclient.
//
// [Inspect] decodes claims without verifying the signature. The client only
// uses it to notice an expired token before sending it; the server remains
// the authority on validity. Opaque (non-JWT) tokens fail inspection with
// [ErrNotJWT] and are simply sent as-is.
//
// [Issuer] signs and verifies tokens. It backs the authtest stub server and
// is not meant to replace a real authentication service.
package token
