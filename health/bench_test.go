package health

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkRun measures single execution overhead.
func BenchmarkRun(b *testing.B) {
	check := NewCheckFunc("bench", "test", func(ctx context.Context, at time.Time) Result {
		return Healthy("bench", "ok")
	})
	ctx := context.Background()
	at := time.Now().UTC()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Run(ctx, check, time.Second, at)
	}
}

// BenchmarkRegistry_RunAll measures a policy-free sweep over many checks.
func BenchmarkRegistry_RunAll(b *testing.B) {
	r := NewRegistry()
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("check%d", i)
		_, err := r.Register(NewCheckFunc(name, "bench", func(ctx context.Context, at time.Time) Result {
			return Healthy(name, "ok")
		}), DefaultConfig())
		if err != nil {
			b.Fatal(err)
		}
	}
	ctx := context.Background()
	at := time.Now().UTC()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.RunAll(ctx, at)
	}
}

// BenchmarkRegistry_Lookup measures concurrent-read registry access.
func BenchmarkRegistry_Lookup(b *testing.B) {
	r := NewRegistry()
	_, err := r.Register(NewCheckFunc("db", "bench", func(ctx context.Context, at time.Time) Result {
		return Healthy("db", "ok")
	}), DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = r.Lookup("db")
		}
	})
}
