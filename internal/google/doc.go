// Package google mints short-lived Google API access tokens for a service
// account.
//
// A signed JWT assertion is built for the account and exchanged at the
// OAuth2 token endpoint using the JWT-bearer grant. Signing goes through the
// narrow Signer interface so tests can substitute the RSA key.
//
// ServiceAccountTokenProvider.AccessToken never fails the caller because of
// missing credentials, a rejected exchange or a transport failure: it returns
// a nil token, which callers treat as "not connected".
package google
