package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/bookshelf/db"
	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "catalog JSON file; the embedded seed catalog when empty")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or SHELF_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHELF_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SHELF_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHELF_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	raw := db.SeedCatalog
	if catalogFile != "" {
		slog.Info("reading catalog file", slog.String("path", catalogFile))
		data, err := os.ReadFile(catalogFile)
		if err != nil {
			return errors.Wrap(err, "read catalog file")
		}
		raw = data
	}
	cat, err := parseCatalog(raw)
	if err != nil {
		return errors.Wrap(err, "parse catalog")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedBooks(ctx, postgres.NewBookRepository(pool), cat.Books); err != nil {
		return errors.Wrap(err, "seed books")
	}
	if err := seedCombos(ctx, postgres.NewComboRepository(pool), cat.Combos); err != nil {
		return errors.Wrap(err, "seed combos")
	}

	rules := postgres.NewPromoRuleRepository(pool)
	for _, r := range cat.PromoRules {
		if err := rules.Upsert(ctx, r); err != nil {
			return errors.Wrapf(err, "upsert promo %s", r.Code)
		}
		slog.Info("upserted promo rule", slog.String("code", r.Code), slog.String("description", r.Description))
	}

	if apiKey == "" {
		slog.Info("no API key given, skipping")
		return nil
	}
	return seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper)
}

// seedBooks creates missing books and refreshes existing ones, so the seed
// can be rerun.
func seedBooks(ctx context.Context, repo book.Repository, books []book.Book) error {
	slog.Info("upserting books", slog.Int("count", len(books)))

	for _, b := range books {
		_, err := repo.Get(ctx, b.ID)
		switch {
		case errors.Is(err, book.ErrNotFound):
			err = repo.Create(ctx, &b)
		case err == nil:
			err = repo.Update(ctx, &b)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert book %s", b.ID)
		}
		slog.Info("upserted book", slog.String("id", b.ID), slog.String("title", b.Title))
	}
	return nil
}

func seedCombos(ctx context.Context, repo book.ComboRepository, combos []book.Combo) error {
	slog.Info("upserting combos", slog.Int("count", len(combos)))

	for _, c := range combos {
		_, err := repo.Get(ctx, c.ID)
		switch {
		case errors.Is(err, book.ErrNotFound):
			err = repo.Create(ctx, &c)
		case err == nil:
			err = repo.Update(ctx, &c)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert combo %s", c.ID)
		}
		slog.Info("upserted combo", slog.String("id", c.ID), slog.String("title", c.Title))
	}
	return nil
}

type keyStore interface {
	Upsert(ctx context.Context, hash, name string, scopes []string) error
}

func seedAPIKey(ctx context.Context, keys keyStore, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	hash := auth.HashAPIKey([]byte(pepper), apiKey)
	if err := keys.Upsert(ctx, hash, "Seeded admin key", []string{auth.ScopeAdmin}); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("name", "Seeded admin key"))
	return nil
}
