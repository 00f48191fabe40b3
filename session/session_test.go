package session

import (
	"errors"
	"testing"

	"github.com/xraph/tollgate/id"
)

func TestLoginLogout(t *testing.T) {
	m := NewManager()
	actor := id.NewActorID()

	s, err := m.Login(actor, RoleInfluencer)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if s.ActorID() != actor {
		t.Errorf("actor: got %s, want %s", s.ActorID(), actor)
	}
	if s.Role() != RoleInfluencer {
		t.Errorf("role: got %s, want %s", s.Role(), RoleInfluencer)
	}

	got, err := m.Get(actor)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}

	m.Logout(actor)
	if _, err := m.Get(actor); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestLoginDuplicate(t *testing.T) {
	m := NewManager()
	actor := id.NewActorID()

	if _, err := m.Login(actor, RoleVendor); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := m.Login(actor, RoleVendor); !errors.Is(err, ErrAlreadyLoggedIn) {
		t.Errorf("expected ErrAlreadyLoggedIn, got %v", err)
	}
}

func TestLoginInvalidRole(t *testing.T) {
	m := NewManager()
	if _, err := m.Login(id.NewActorID(), Role("admin")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestObserveBalance(t *testing.T) {
	m := NewManager()
	s, err := m.Login(id.NewActorID(), RoleInfluencer)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if bal, at := s.Balance(); bal != 0 || !at.IsZero() {
		t.Errorf("fresh session balance: got %s at %v", bal, at)
	}

	s.ObserveBalance(150)
	bal, at := s.Balance()
	if bal != 150 {
		t.Errorf("balance: got %s, want 150", bal)
	}
	if at.IsZero() {
		t.Error("balance timestamp not set")
	}
}
