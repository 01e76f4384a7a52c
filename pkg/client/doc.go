// Package client is the Go SDK for an XID identity-binding service.
//
// Reads are public; every mutating call needs a principal token issued by
// the hosting platform:
//
//	c, err := client.New("http://localhost:8090",
//	    client.WithBearerToken(os.Getenv("XID_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Binding an identity
//
// An attestation envelope is produced by the attestation relay and
// submitted unchanged:
//
//	id, err := c.SubmitAttestation(ctx, client.Envelope{Msg: msg, Sig: sig})
//	switch {
//	case errors.Is(err, client.ErrReplay):
//	    // the envelope's uuid has been used before
//	case errors.Is(err, client.ErrAlreadyBound):
//	    // someone else holds this (platform, identity)
//	}
//
// Host-principal binding is two calls made by two different callers: the
// owner names the principal, then that principal confirms:
//
//	err = owner.RequestHostBinding(ctx, hostPrincipal)
//	id, err = host.ConfirmHostBinding(ctx)
//
// # Errors
//
// Every non-2xx response is returned as *APIError. errors.Is matches it
// against the sentinel errors of this package by its wire code, so callers
// rarely need to inspect status codes.
package client
