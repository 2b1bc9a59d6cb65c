// Package iam turns inbound credentials into verified principals and local sessions.
//
// Two bearer token modes exist:
//   - JWTAuthenticator verifies signatures against the issuer's JWKS
//   - UpstreamAuthenticator trusts a gateway that already verified the token
//
// SessionEstablisher then maps a principal onto a local user, provisioning and
// reconciling roles for identities seen for the first time.
package iam
