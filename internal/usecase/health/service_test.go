package health

import (
	"context"
	"errors"
	"testing"
)

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{})
	svc.SetReady()
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks["embedding"])
	}
}

func TestCheck_DatabaseDown(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("connection refused")}, &mockEmbeddingChecker{})
	svc.SetReady()
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_EmbeddingDown(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{err: errors.New("401")})
	svc.SetReady()
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
}

func TestCheck_NilEmbeddingSkipped(t *testing.T) {
	svc := New(&mockDBPinger{}, nil)
	svc.SetReady()
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when no checker is wired")
	}
}

func TestCheck_StartingBeforeReady(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Starting {
		t.Errorf("expected %q before SetReady, got %q", Starting, r.Status)
	}
	if svc.Ready() {
		t.Error("service must not report ready before SetReady")
	}

	svc.SetReady()
	if !svc.Ready() {
		t.Error("service must report ready after SetReady")
	}
}
