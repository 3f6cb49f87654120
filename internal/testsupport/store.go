package testsupport

import (
	"context"
	"testing"

	"powderlab/internal/config"
	"powderlab/internal/store"
)

// MustOpenStore opens a store for tests and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	if cfg == nil {
		cfg = NewConfig(t)
	}
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// FloatPtr returns a pointer to the given value for bound literals.
func FloatPtr(value float64) *float64 {
	return &value
}

// SeedPowderSpec writes a powder specification inside one transaction.
func SeedPowderSpec(t testing.TB, st *store.Store, spec *store.PowderSpec) {
	t.Helper()

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.UpsertPowderSpec(spec)
	})
	if err != nil {
		t.Fatalf("seed powder spec %s: %v", spec.PowderName, err)
	}
}

// SeedParticleBuckets writes mesh bucket specs for one powder.
func SeedParticleBuckets(t testing.TB, st *store.Store, buckets ...store.ParticleSizeBucket) {
	t.Helper()

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		for _, bucket := range buckets {
			if err := tx.PutParticleBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed particle buckets: %v", err)
	}
}

// SeedRecipes writes ingredient lines for one product.
func SeedRecipes(t testing.TB, st *store.Store, recipes ...*store.Recipe) {
	t.Helper()

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		for _, recipe := range recipes {
			if err := tx.CreateRecipe(recipe); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed recipes: %v", err)
	}
}
