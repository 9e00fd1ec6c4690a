package google

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// assertionLifetime is the validity of a signed assertion.
const assertionLifetime = time.Hour

// signerMethod is a jwt.SigningMethod that hands the signing input to a
// Signer. It only signs; assertions are verified by the token endpoint.
type signerMethod struct{}

var signingMethodSigner = signerMethod{}

func (signerMethod) Alg() string { return "RS256" }

func (signerMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	signer, ok := key.(Signer)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	return signer.Sign([]byte(signingString))
}

func (signerMethod) Verify(string, []byte, interface{}) error {
	return jwt.ErrTokenSignatureInvalid
}

// assertionClaims is the claim set Google expects for the JWT-bearer grant.
type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// buildAssertion returns the signed JWT for email with the given scopes.
func buildAssertion(signer Signer, email, audience string, scopes []string, now time.Time) (string, error) {
	claims := assertionClaims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    email,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		},
	}
	return jwt.NewWithClaims(signingMethodSigner, claims).SignedString(signer)
}
