package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// leeway absorbs clock skew between the issuer and this service.
const leeway = 30 * time.Second

// Claims identify a salon staff user. TenantID scopes every request; StaffID is
// set for stylists acting on their own calendar.
type Claims struct {
	Sub      string `json:"sub"`
	TenantID string `json:"tenant_id"`
	StaffID  string `json:"staff_id,omitempty"`
	Role     string `json:"role"`
	Exp      int64  `json:"exp,omitempty"`
	Nbf      int64  `json:"nbf,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
}

// valid checks the time claims against now.
func (c *Claims) valid(now time.Time) bool {
	if c.Exp > 0 && now.Add(-leeway).Unix() > c.Exp {
		return false
	}
	if c.Nbf > 0 && now.Add(leeway).Unix() < c.Nbf {
		return false
	}
	return true
}

type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// compact is a split JWS compact serialization.
type compact struct {
	header    Header
	payload   []byte
	signed    string
	signature []byte
}

func split(token string) (*compact, error) {
	h, rest, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}
	p, s, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(s, ".") {
		return nil, ErrInvalidToken
	}
	rawHeader, err := base64.RawURLEncoding.DecodeString(h)
	if err != nil {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidToken
	}
	c := &compact{payload: payload, signed: h + "." + p, signature: sig}
	if err := json.Unmarshal(rawHeader, &c.header); err != nil {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (c *compact) claims(now time.Time) (*Claims, error) {
	var claims Claims
	if err := json.Unmarshal(c.payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.valid(now) {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func hs256(data, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return mac.Sum(nil)
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// SignHS256 issues a token for claims. Used by tests and local tooling; production
// tokens come from the identity provider.
func SignHS256(claims Claims, secret string) (string, error) {
	h, err := encodeSegment(Header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	p, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}
	signed := h + "." + p
	return signed + "." + base64.RawURLEncoding.EncodeToString(hs256(signed, secret)), nil
}

// ParseAndVerifyHS256 rejects tokens whose header names another algorithm and
// refuses to verify against an empty secret.
func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	c, err := split(token)
	if err != nil {
		return nil, err
	}
	if secret == "" || c.header.Alg != "HS256" || !hmac.Equal(c.signature, hs256(c.signed, secret)) {
		return nil, ErrInvalidToken
	}
	return c.claims(time.Now())
}

func VerifyRS256(token string, pubKey crypto.PublicKey) (*Claims, error) {
	c, err := split(token)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := pubKey.(*rsa.PublicKey)
	if !ok || c.header.Alg != "RS256" {
		return nil, ErrInvalidToken
	}
	digest := sha256.Sum256([]byte(c.signed))
	if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, digest[:], c.signature); err != nil {
		return nil, ErrInvalidToken
	}
	return c.claims(time.Now())
}

// ParseHeader decodes only the JOSE header, to pick a verification key.
func ParseHeader(token string) (*Header, error) {
	c, err := split(token)
	if err != nil {
		return nil, err
	}
	return &c.header, nil
}
