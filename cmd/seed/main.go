// seed creates the users table and two dev accounts in the local database:
// a confirmed one that can log in straight away, and an unconfirmed one
// with pending confirmation materials.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rocketmoon/identity/internal/credential"
	"github.com/rocketmoon/identity/internal/infrastructure/postgres"
	"github.com/rocketmoon/identity/internal/token"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name               TEXT NOT NULL,
	email              TEXT NOT NULL UNIQUE,
	password_hash      TEXT NOT NULL,
	confirmed          BOOLEAN NOT NULL DEFAULT FALSE,
	confirmation_token TEXT NOT NULL DEFAULT '',
	otp_token          TEXT NOT NULL DEFAULT '',
	auth_tokens        TEXT[] NOT NULL DEFAULT '{}',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const (
	confirmedEmail   = "confirmed@test.local"
	unconfirmedEmail = "unconfirmed@test.local"
	seedPassword     = "password123"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("create schema: %v", err)
	}

	hash, err := credential.NewHasher(credential.DefaultCost).Hash(seedPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var confirmedID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, confirmed)
		VALUES ('Seed Confirmed', $1, $2, TRUE)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		confirmedEmail, hash,
	).Scan(&confirmedID)
	if err != nil {
		log.Fatalf("upsert confirmed user: %v", err)
	}

	var unconfirmedID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ('Seed Unconfirmed', $1, $2)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		unconfirmedEmail, hash,
	).Scan(&unconfirmedID)
	if err != nil {
		log.Fatalf("upsert unconfirmed user: %v", err)
	}

	// Pending materials for the unconfirmed account so the confirm flows
	// can be exercised immediately.
	codec := token.NewCodec([]byte(jwtSecret))
	confirmationToken, err := codec.Issue(unconfirmedID, token.PurposeConfirmation, 24*time.Hour)
	if err != nil {
		log.Fatalf("issue confirmation token: %v", err)
	}
	otpToken, err := codec.IssueWithCode(unconfirmedID, token.PurposeOTP, "123456", 15*time.Minute)
	if err != nil {
		log.Fatalf("issue otp token: %v", err)
	}

	if err := postgres.NewUserRepository(pool).SetConfirmationMaterials(ctx, unconfirmedID, confirmationToken, otpToken); err != nil {
		log.Fatalf("store confirmation materials: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Confirmed user:    %s / %s\n", confirmedEmail, seedPassword)
	fmt.Printf("  Unconfirmed user:  %s / %s  (OTP: 123456)\n", unconfirmedEmail, seedPassword)
	fmt.Printf("  Confirmation link: /auth/confirm/%s\n", confirmationToken)
}
