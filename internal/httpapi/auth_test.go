package httpapi

import (
	"context"
	"testing"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store/memory"
)

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{
		Username: "cashier",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.Role != domain.RoleCashier {
		t.Fatalf("expected CASHIER role, got %s", resp.User.Role)
	}

	actor, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.ID != "usr-cashier" || actor.Username != "cashier" || actor.Role != domain.RoleCashier {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	repo := memory.NewSeeded()
	issuer := NewAuthManager("secret-one", time.Hour, repo)
	verifier := NewAuthManager("secret-two", time.Hour, repo)

	resp, err := issuer.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := verifier.ParseToken(resp.Token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	repo := memory.NewSeeded()
	if err := repo.CreateUser(context.Background(), &domain.User{
		Username:     "ghost",
		PasswordHash: "$2a$10$invalidhashinvalidhashinvalidhashinvalidhashinvalidha",
		Role:         domain.RoleCashier,
		Active:       false,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	if _, err := auth.Login(context.Background(), domain.LoginRequest{
		Username: "ghost",
		Password: "password",
	}); err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key", -time.Minute, repo)

	// NewAuthManager floors non-positive TTLs, so sign directly
	user, err := repo.GetUserByUsername(context.Background(), "cashier")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	token, err := auth.sign(user, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
