// Package security decides which servers a client session trusts.
//
// TLSConfig covers ordinary TLS settings (custom CA, client certificates,
// minimum version). A Policy adds server trust evaluation on top: AcceptAll
// keeps the platform's default verification, PinnedCertificates only accepts
// servers presenting one of a fixed set of certificates.
//
//	certs, err := security.LoadBundle("certs/")
//	policy, err := security.PinCertificates(certs)
//	err = security.ApplyPolicy(transport, policy)
//
// A policy is bound to a transport once and never changes afterwards.
package security
