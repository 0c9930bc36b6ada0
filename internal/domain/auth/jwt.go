package auth

import (
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity provider's access token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

// EffectiveRole prefers the application role over the token role, which the
// identity provider sets to a generic value for every signed-in user.
func (c *Claims) EffectiveRole() string {
	if c.AppMetadata.Role != "" {
		return c.AppMetadata.Role
	}
	return c.Role
}

// TokenVerifier validates HS256 access tokens.
type TokenVerifier struct {
	secret []byte
	policy AdminPolicy
}

// NewTokenVerifier creates a TokenVerifier for tokens signed with secret.
func NewTokenVerifier(secret []byte, policy AdminPolicy) *TokenVerifier {
	return &TokenVerifier{secret: secret, policy: policy}
}

// Verify parses and validates token and returns the caller.
func (v *TokenVerifier) Verify(token string) (*Principal, error) {
	if len(v.secret) == 0 {
		return nil, ErrUnauthorized
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	p := &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.UserMetadata.FullName,
		Role:   claims.EffectiveRole(),
		Via:    ViaToken,
	}
	p.Admin = v.policy.Allows(*p)
	return p, nil
}
