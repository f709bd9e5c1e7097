// Package auth decides who may change documents and signs session cookies.
//
// # Gate
//
// folio has one permission model: a session is either signed in or
// anonymous. RequireAuthenticated allows signed-in sessions and denies the
// rest with DeniedMessage and a redirect to DeniedRedirect. AllowAll is the
// "auth.mode: disabled" deployment, where every visitor may edit. Handlers
// consult the Gate before touching any store.
//
// Gated operations: the new-document form and submit, the edit form and
// submit, and delete. Listing and viewing documents are open to everyone.
//
// # Session tokens
//
// JWTSigner issues HS256 tokens whose "sub" claim is a session ID. The
// session cookie carries such a token, so altering the cookie invalidates
// the signature. Tokens must carry iss "folio" and an exp claim.
//
//	signer := auth.NewJWTSigner([]byte(cfg.Auth.SessionSecret))
//	token, err := signer.Generate(sessionID, 24*time.Hour)
//	id, err := signer.Verify(token)
package auth
