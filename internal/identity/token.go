package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"icredit2.org/internal/ids"
)

const (
	defaultIssuer     = "icredit2"
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	// ErrTokenExpired means signature and shape were fine but the expiry
	// instant has passed; callers may prompt re-authentication.
	ErrTokenExpired = errors.New("identity: token expired")
	// ErrTokenSignature means the token was signed with a different key or
	// algorithm.
	ErrTokenSignature = errors.New("identity: token signature invalid")
	// ErrTokenMalformed covers every other parse or claim-shape failure.
	ErrTokenMalformed = errors.New("identity: token malformed")
)

// Claims are the verified access-token claims: subject is the user id, the
// tenant claim is the owning company id.
type Claims struct {
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed, time-bounded access tokens and
// mints opaque refresh tokens. Access-token operations are pure: validity is
// determined by signature and expiry alone, never by a store lookup.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			return errors.New("issuer must not be empty")
		}
		s.issuer = issuer
		return nil
	}
}

// WithAccessTTL configures the access token validity window.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl <= 0 {
			return errors.New("access ttl must be greater than zero")
		}
		s.accessTTL = ttl
		return nil
	}
}

// WithRefreshTTL configures the refresh token validity window.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl <= 0 {
			return errors.New("refresh ttl must be greater than zero")
		}
		s.refreshTTL = ttl
		return nil
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService signing with HS256.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a token with subject=userID and the tenant claim set
// to companyID. Extra claims may not shadow the registered set.
func (s *TokenService) IssueAccessToken(userID, companyID string, extra map[string]any) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	companyID = strings.TrimSpace(companyID)
	if userID == "" || companyID == "" {
		return "", time.Time{}, errors.New("userID and companyID are required")
	}

	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := jwt.MapClaims{
		"iss":        s.issuer,
		"sub":        userID,
		"company_id": companyID,
		"iat":        jwt.NewNumericDate(now),
		"exp":        jwt.NewNumericDate(exp),
		"jti":        uuid.NewString(),
	}
	for k, v := range extra {
		switch k {
		case "iss", "sub", "company_id", "iat", "exp", "jti":
			continue
		}
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateAccessToken verifies signature and expiry. Expired, badly signed and
// otherwise malformed tokens fail with distinct errors.
func (s *TokenService) ValidateAccessToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenSignature
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.CompanyID) == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// ExtractSubject parses the subject claim without verifying the signature.
// Only useful to look up the identity record needed for full validation.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return "", ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

// MintRefreshToken generates an opaque refresh token of the form
// "<id>.<secret>" and the record to persist. Only the sha256 of the secret is
// stored; the raw value cannot be recovered later.
func (s *TokenService) MintRefreshToken(userID string) (string, *RefreshToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, errors.New("userID is required")
	}
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	rec := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: HashRefreshSecret(secret),
		ExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}
	return rec.ID + "." + secret, rec, nil
}

// SplitRefreshToken breaks a raw refresh token into its record id and secret.
func SplitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

// HashRefreshSecret returns the hex sha256 of the refresh secret.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyRefreshSecret compares a stored hash against a presented secret in
// constant time.
func VerifyRefreshSecret(storedHash, secret string) bool {
	actual := HashRefreshSecret(secret)
	if len(storedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(actual)) == 1
}
