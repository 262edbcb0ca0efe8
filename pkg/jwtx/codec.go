package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrWrongType   = errors.New("jwtx: wrong token type")
)

// Codec signs and verifies compact HS256 tokens. Access and refresh tokens
// use separate keys so compromise of one key cannot forge the other type.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	issuer     string
	audience   []string
}

// NewCodec builds a Codec from the two signing secrets. Both keys are
// required and must differ; sharing a key would defeat the channel split.
func NewCodec(accessKey, refreshKey []byte, issuer string, audience []string) (*Codec, error) {
	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, errors.New("jwtx: signing keys must not be empty")
	}
	if string(accessKey) == string(refreshKey) {
		return nil, errors.New("jwtx: access and refresh keys must differ")
	}
	return &Codec{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		issuer:     issuer,
		audience:   audience,
	}, nil
}

// Issuer returns the issuer the codec signs and verifies against.
func (c *Codec) Issuer() string { return c.issuer }

// SignAccess signs claims as an access token with the access key.
func (c *Codec) SignAccess(claims Claims) (string, error) {
	claims.TokenType = TokenTypeAccess
	return c.sign(claims, c.accessKey)
}

// SignRefresh signs claims as a refresh token with the refresh key.
func (c *Codec) SignRefresh(claims Claims) (string, error) {
	claims.TokenType = TokenTypeRefresh
	return c.sign(claims, c.refreshKey)
}

func (c *Codec) sign(claims Claims, key []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(key)
}

// VerifyAccess verifies a token against the access key and enforces the
// access token type.
func (c *Codec) VerifyAccess(token string) (Claims, error) {
	return c.verify(token, c.accessKey, TokenTypeAccess)
}

// VerifyRefresh verifies a token against the refresh key and enforces the
// refresh token type.
func (c *Codec) VerifyRefresh(token string) (Claims, error) {
	return c.verify(token, c.refreshKey, TokenTypeRefresh)
}

func (c *Codec) verify(token string, key []byte, wantType string) (Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return key, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidSig
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrIssuer
	}
	if claims.TokenType != wantType {
		return Claims{}, ErrWrongType
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
