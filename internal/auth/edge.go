package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// EdgeVerifier is the pre-filter stage verifier. It checks the compact JWS
// by hand so it can run in front of the router without the full parser, and
// it must accept exactly the tokens Verifier accepts: same algorithm, same
// base64 and JSON decoding rules, same expiry and not-before comparisons.
type EdgeVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewEdgeVerifier(secret string) *EdgeVerifier {
	return &EdgeVerifier{secret: []byte(secret), now: time.Now}
}

// EdgeClaims carries the fields the pre-filter needs for routing decisions.
type EdgeClaims struct {
	UserID   string
	Email    string
	TenantID string
	Role     string
	Expires  time.Time
}

// edgePayload mirrors the JSON shape of Claims so that decoding fails on the
// same type mismatches.
type edgePayload struct {
	UserID   string          `json:"userId"`
	Email    string          `json:"email"`
	TenantID string          `json:"tenantId"`
	Role     string          `json:"role"`
	Issuer   string          `json:"iss"`
	Subject  string          `json:"sub"`
	ID       string          `json:"jti"`
	Audience json.RawMessage `json:"aud"`
	Exp      json.Number     `json:"exp"`
	Nbf      json.Number     `json:"nbf"`
	Iat      json.Number     `json:"iat"`
}

func (v *EdgeVerifier) Verify(token string) (*EdgeClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidCredential
	}

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidCredential
	}
	var header map[string]any
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return nil, ErrInvalidCredential
	}
	if alg, _ := header["alg"].(string); alg != signingAlg {
		return nil, ErrInvalidCredential
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidCredential
	}
	var p edgePayload
	if err := json.Unmarshal(payloadRaw, &p); err != nil {
		return nil, ErrInvalidCredential
	}
	if !validAudience(p.Audience) {
		return nil, ErrInvalidCredential
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidCredential
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, ErrInvalidCredential
	}

	now := v.now()
	exp, present, ok := numericDate(p.Exp)
	if !ok || !present || !now.Before(exp) {
		return nil, ErrInvalidCredential
	}
	nbf, present, ok := numericDate(p.Nbf)
	if !ok || (present && now.Before(nbf)) {
		return nil, ErrInvalidCredential
	}
	if _, _, ok := numericDate(p.Iat); !ok {
		return nil, ErrInvalidCredential
	}

	if p.UserID == "" || p.Email == "" {
		return nil, ErrInvalidCredential
	}
	return &EdgeClaims{
		UserID:   p.UserID,
		Email:    p.Email,
		TenantID: p.TenantID,
		Role:     p.Role,
		Expires:  exp,
	}, nil
}

// numericDate converts a JWT NumericDate to whole-second precision.
func numericDate(n json.Number) (t time.Time, present bool, ok bool) {
	if n == "" {
		return time.Time{}, false, true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, true, false
	}
	round, frac := math.Modf(f)
	return time.Unix(int64(round), int64(frac*1e9)).Truncate(time.Second), true, true
}

// validAudience accepts a string, an array of strings, null or absence.
func validAudience(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch aud := v.(type) {
	case nil, string:
		return true
	case []any:
		for _, item := range aud {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
