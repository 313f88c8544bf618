package auth

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestCodec(t *testing.T, secret string, opts ...CodecOption) *Codec {
	t.Helper()
	codec, err := NewCodec(TokenConfig{
		Secret:    []byte(secret),
		Algorithm: "HS256",
		TTL:       30 * time.Minute,
	}, opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestCodecIssueAndDecode(t *testing.T) {
	codec := newTestCodec(t, "test-secret")

	token, expiresAt, err := codec.Issue("alice", 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected compact JWT, got %d segments", len(parts))
	}
	want := time.Now().Add(15 * time.Minute)
	if d := expiresAt.Sub(want); d > 2*time.Second || d < -2*time.Second {
		t.Fatalf("expiresAt %v not within tolerance of %v", expiresAt, want)
	}

	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if !claims.ExpiresAt.Time.Equal(expiresAt) {
		t.Fatalf("exp claim %v != returned expiry %v", claims.ExpiresAt.Time, expiresAt)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestCodecExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, "test-secret", WithClock(clock.Now))

	token, expiresAt, err := codec.Issue("bob", 10*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.Set(expiresAt.Add(-time.Second))
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("token one second before expiry rejected: %v", err)
	}

	for _, at := range []time.Time{expiresAt, expiresAt.Add(time.Second), expiresAt.Add(time.Hour)} {
		clock.Set(at)
		_, err := codec.Decode(token)
		if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("decode at %v: expected expired token error, got %v", at, err)
		}
	}
}

func TestCodecRejectsForeignSecret(t *testing.T) {
	issuer := newTestCodec(t, "secret-a")
	verifier := newTestCodec(t, "secret-b")

	token, _, err := issuer.Issue("carol", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestCodecRejectsTampering(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	token, _, err := codec.Issue("dave", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(token, ".")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin", "exp": time.Now().Add(time.Hour).Unix()})
	forgedSigned, err := forged.SignedString([]byte("other"))
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}
	forgedParts := strings.Split(forgedSigned, ".")

	cases := map[string]string{
		"empty":            "",
		"garbage":          "not-a-token",
		"two segments":     parts[0] + "." + parts[1],
		"swapped payload":  parts[0] + "." + forgedParts[1] + "." + parts[2],
		"stripped sig":     parts[0] + "." + parts[1] + ".",
		"bad base64":       parts[0] + ".%%%." + parts[2],
		"foreign signed":   forgedSigned,
		"trailing segment": token + ".x",
	}
	for name, tok := range cases {
		if _, err := codec.Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestCodecRejectsNoneAndOtherAlgorithms(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	claims := jwt.MapClaims{"sub": "eve", "exp": time.Now().Add(time.Hour).Unix()}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Decode(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none accepted: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := codec.Decode(hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unexpected algorithm accepted: %v", err)
	}
}

func TestCodecRequiresSubjectAndExpiry(t *testing.T) {
	codec := newTestCodec(t, "test-secret")

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Decode(noSub); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without sub accepted: %v", err)
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "frank"}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Decode(noExp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without exp accepted: %v", err)
	}
}

func TestCodecIssuerIsChecked(t *testing.T) {
	a, err := NewCodec(TokenConfig{Secret: []byte("s"), TTL: time.Minute, Issuer: "pursekeep"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	b, err := NewCodec(TokenConfig{Secret: []byte("s"), TTL: time.Minute, Issuer: "elsewhere"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := b.Issue("gina", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := a.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token from other issuer accepted: %v", err)
	}
}

func TestCodecIssueValidation(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	if _, _, err := codec.Issue("  ", time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := codec.Issue("henry", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestNewCodecValidation(t *testing.T) {
	cases := map[string]TokenConfig{
		"no secret":     {Algorithm: "HS256", TTL: time.Minute},
		"bad algorithm": {Secret: []byte("s"), Algorithm: "RS256", TTL: time.Minute},
		"zero ttl":      {Secret: []byte("s"), Algorithm: "HS256"},
	}
	for name, cfg := range cases {
		if _, err := NewCodec(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	codec, err := NewCodec(TokenConfig{Secret: []byte("s"), Algorithm: "hs384", TTL: time.Minute})
	if err != nil {
		t.Fatalf("lowercase algorithm: %v", err)
	}
	if codec.TTL() != time.Minute {
		t.Fatalf("unexpected ttl: %v", codec.TTL())
	}
}

func TestCodecSecretIsCopied(t *testing.T) {
	secret := []byte("mutable-secret")
	codec, err := NewCodec(TokenConfig{Secret: secret, TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Issue("ivan", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	copy(secret, "XXXXXXXXXXXXXX")
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("caller mutation leaked into codec: %v", err)
	}
}

func TestCodecConcurrentDecode(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	token, _, err := codec.Issue("judy", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := codec.Decode(token); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent decode: %v", err)
	}
}
