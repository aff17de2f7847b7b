package memory

import (
	"context"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		BankLoader: NewStaticBankLoader(map[string]domain.Bank{
			"default": sampleBank(),
		}),
	}
	repo := NewBankRepository(loader, time.Minute)

	bank, err := repo.GetBank(context.Background(), "default")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if bank.Count() != 2 {
		t.Fatalf("expected 2 questions, got %d", bank.Count())
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestBankRepositoryReloadsWhenStale(t *testing.T) {
	loader := &countingLoader{
		BankLoader: NewStaticBankLoader(map[string]domain.Bank{
			"default": sampleBank(),
		}),
	}
	repo := NewBankRepository(loader, time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return current }

	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single load while fresh, got %d", loader.calls)
	}

	// jitter stretches the ttl by at most 10%, so two minutes is past
	// any possible expiry
	current = current.Add(2 * time.Minute)
	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected a reload once stale, got %d calls", loader.calls)
	}
}

func TestStaticBankLoaderUnknownID(t *testing.T) {
	loader := NewStaticBankLoader(map[string]domain.Bank{"default": sampleBank()})
	if _, err := loader.LoadBank(context.Background(), "missing"); err != domain.ErrBankNotFound {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

type countingLoader struct {
	BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.Bank, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.Bank {
	return domain.Bank{
		ID: "default",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
			{ID: "q2", Prompt: "Largest planet?", Options: []string{"Mars", "Jupiter", "Venus"}, CorrectIndex: 1},
		},
	}
}
