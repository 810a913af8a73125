package utils // package utils provides helper functions for holder tokens and hashing

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
    "github.com/google/uuid"
)

// holderTokenType is stored in the "typ" claim so that other HS256 tokens
// signed with the same secret are not accepted as holder tokens.
const holderTokenType = "holder"

// ErrInvalidHolderToken is returned when a holder token fails verification.
var ErrInvalidHolderToken = errors.New("invalid holder token")

// HolderToken represents a signed anonymous holder identity.  Holder is the
// opaque id the reservation engine keys holds by; Token is the JWT string a
// client sends back in the Authorization header.  Holder tokens are not
// user accounts: anyone can mint one and they only prove that two requests
// come from the same client.
type HolderToken struct {
    Token  string    `json:"token"`
    Holder string    `json:"holder"`
    Exp    time.Time `json:"expires_at"`
}

// NewHolderToken mints a fresh holder id and signs it as an HS256 JWT.  The
// token carries the holder id as subject, a type marker, and standard
// expiration and issued-at claims.
func NewHolderToken(secret string, ttl time.Duration) (HolderToken, error) {
    if secret == "" {
        return HolderToken{}, fmt.Errorf("holder token: empty secret")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    holder := uuid.NewString()
    claims := jwt.MapClaims{
        "sub": holder,
        "typ": holderTokenType,
        "exp": exp.Unix(),
        "iat": now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return HolderToken{}, err
    }
    return HolderToken{Token: signed, Holder: holder, Exp: exp}, nil
}

// ParseHolderToken verifies a holder token and returns the holder id it
// carries.  Only HS256 is accepted and the expiration claim is required.
func ParseHolderToken(secret, raw string) (string, error) {
    token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !token.Valid {
        return "", ErrInvalidHolderToken
    }
    claims, ok := token.Claims.(jwt.MapClaims)
    if !ok {
        return "", ErrInvalidHolderToken
    }
    if typ, _ := claims["typ"].(string); typ != holderTokenType {
        return "", ErrInvalidHolderToken
    }
    sub, _ := claims["sub"].(string)
    if sub == "" {
        return "", ErrInvalidHolderToken
    }
    return sub, nil
}
