package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// handSigned builds an HS256 JWT without the jwt package, the way any other
// issuer sharing the secret would.
func handSigned(key, payload string) string {
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." + enc.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(signingInput))
	return signingInput + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestIssueVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(secret, fixedClock(now))
	id := uuid.New()

	token, err := svc.Issue(id, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	got, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, id, got)

	// Surrounding whitespace from header parsing is tolerated.
	got, err = svc.Verify("  " + token + " ")
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestVerifyAcceptsExternallyIssuedToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(secret, fixedClock(now))
	id := uuid.New()

	exp := strconv.FormatInt(now.Add(time.Hour).Unix(), 10)
	token := handSigned(secret, `{"sub":"`+id.String()+`","exp":`+exp+`}`)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(secret, fixedClock(now))
	id := uuid.New()
	exp := strconv.FormatInt(now.Add(time.Hour).Unix(), 10)

	token, err := svc.Issue(id, time.Minute)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	forged, err := NewService("another-secret-another-secret-xx", fixedClock(now)).Issue(id, time.Minute)
	require.NoError(t, err)

	nilToken, err := svc.Issue(uuid.Nil, time.Minute)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"two segments", parts[0] + "." + parts[1]},
		{"empty signature", parts[0] + "." + parts[1] + "."},
		{"bad base64 signature", parts[0] + "." + parts[1] + ".!!!"},
		{"tampered payload", parts[0] + "." + parts[1] + "x." + parts[2]},
		{"wrong secret", forged},
		{"alg none", unsigned},
		{"other algorithm", hs512},
		{"nil subject", nilToken},
		{"subject not a uuid", handSigned(secret, `{"sub":"alice","exp":`+exp+`}`)},
		{"missing expiry", handSigned(secret, `{"sub":"`+id.String()+`"}`)},
		{"payload not json", handSigned(secret, `not json`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := svc.Verify(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
			require.Equal(t, uuid.Nil, got)
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now
	svc := NewService(secret, func() time.Time { return current })

	token, err := svc.Issue(uuid.New(), time.Minute)
	require.NoError(t, err)

	current = now.Add(59 * time.Second)
	_, err = svc.Verify(token)
	require.NoError(t, err)

	current = now.Add(time.Minute)
	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewServiceDefaultClock(t *testing.T) {
	t.Parallel()

	svc := NewService(secret, nil)
	id := uuid.New()
	token, err := svc.Issue(id, time.Minute)
	require.NoError(t, err)
	got, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func FuzzVerify(f *testing.F) {
	svc := NewService(secret, fixedClock(time.Unix(1_700_000_000, 0)))
	valid, err := svc.Issue(uuid.New(), time.Hour)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("....")
	f.Add(handSigned(secret, `{"sub":"x"}`))

	f.Fuzz(func(t *testing.T, token string) {
		id, err := svc.Verify(token)
		if err != nil {
			require.ErrorIs(t, err, ErrInvalidToken)
			require.Equal(t, uuid.Nil, id)
		}
	})
}
