package keygate_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/MrEthical07/keygate"
	"github.com/MrEthical07/keygate/passkey"
	"github.com/MrEthical07/keygate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// ExampleNew builds an engine on an in-process Redis with the go-webauthn verifier.
func ExampleNew() {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		log.Fatal(err)
	}
	hash, err := hasher.Hash("correct-horse-battery")
	if err != nil {
		log.Fatal(err)
	}

	cfg := keygate.DefaultConfig()
	cfg.Admin.PasswordHash = hash
	cfg.Admin.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Passkey.RPID = "localhost"
	cfg.Passkey.RPOrigins = []string{"http://localhost:8080"}

	verifier, err := passkey.New(cfg.Passkey)
	if err != nil {
		log.Fatal(err)
	}

	engine, err := keygate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithVerifier(verifier).
		WithAuditSink(keygate.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	inv, err := engine.IssueInvite(context.Background(), "Agent Smith", "admin")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(len(inv.Token), inv.RecipientLabel)
	// Output: 16 Agent Smith
}

// ExampleCategory maps engine errors to the names used in JSON error bodies.
func ExampleCategory() {
	locked := &keygate.LockedError{RetryAfterMinutes: 5}
	fmt.Println(keygate.Category(keygate.ErrTokenConsumed))
	fmt.Println(keygate.Category(locked), errors.Is(locked, keygate.ErrLocked))
	fmt.Println(keygate.Category(keygate.ErrStoreUnavailable))
	// Output:
	// invalid_token
	// locked true
	// internal
}

// ExampleEngine_MetricsSnapshot reads in-process counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *keygate.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot.Counters[keygate.MetricLoginSuccess]
}
