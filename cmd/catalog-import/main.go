package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/storage/postgres"
)

const (
	progressEvery = 10_000
	maxLineBytes  = 1 << 20
)

func main() {
	var (
		dataDir     string
		databaseURL string
		capacity    uint
		fpr         float64
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected number of distinct books")
	flag.Float64Var(&fpr, "fpr", 0.0001, "bloom filter false positive rate")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, capacity, fpr, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, capacity uint, fpr float64, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list dumps")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	dedup := newDeduper(capacity, fpr)
	var sink func(context.Context, book.Book) error

	if dryRun {
		sink = func(context.Context, book.Book) error { return nil }
	} else {
		slog.Info("connecting to database")
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}

		repo := postgres.NewBookRepository(pool)
		existing, err := repo.List(ctx)
		if err != nil {
			return errors.Wrap(err, "list existing books")
		}
		for _, b := range existing {
			dedup.seen(b)
		}
		slog.Info("existing books loaded", slog.Int("count", len(existing)))
		sink = func(ctx context.Context, b book.Book) error { return repo.Create(ctx, &b) }
	}

	stats, err := importFiles(ctx, files, dedup, sink)
	if err != nil {
		return err
	}
	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Uint64("read", stats.read),
		slog.Uint64("imported", stats.imported),
		slog.Uint64("duplicates", stats.duplicates),
		slog.Uint64("invalid", stats.invalid),
	)
	return nil
}

// deduper remembers books by normalised title and author. A bloom filter
// keeps memory flat for large dumps; a false positive skips a book.
type deduper struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newDeduper(capacity uint, fpr float64) *deduper {
	return &deduper{filter: bloom.NewWithEstimates(capacity, fpr)}
}

func dedupKey(b book.Book) string {
	norm := func(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }
	return norm(b.Title) + "\x00" + norm(b.Author)
}

// seen records b and reports whether it was recorded before.
func (d *deduper) seen(b book.Book) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.TestOrAddString(dedupKey(b))
}

type counts struct {
	read, imported, duplicates, invalid uint64
}

type importStats struct {
	mu sync.Mutex
	counts
}

func (s *importStats) add(c counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read += c.read
	s.imported += c.imported
	s.duplicates += c.duplicates
	s.invalid += c.invalid
}

// importFiles streams every dump concurrently. Books are written through a
// single goroutine so the sink needs no locking.
func importFiles(ctx context.Context, files []string, dedup *deduper, sink func(context.Context, book.Book) error) (*importStats, error) {
	total := &importStats{}
	books := make(chan book.Book, 256)

	g, gctx := errgroup.WithContext(ctx)
	var readers sync.WaitGroup
	for i, f := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			var st counts
			err := streamGzFile(gctx, f, func(line []byte) error {
				st.read++
				if st.read%progressEvery == 0 {
					slog.Info("read progress", slog.Int("file", i+1), slog.Uint64("lines", st.read))
				}
				b, err := parseBook(line)
				if err != nil {
					st.invalid++
					slog.Debug("skipping invalid line", slog.String("file", f), slog.String("error", err.Error()))
					return nil
				}
				if dedup.seen(b) {
					st.duplicates++
					return nil
				}
				select {
				case books <- b:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
			total.add(st)
			if err != nil {
				return errors.Wrapf(err, "import %s", f)
			}
			slog.Info("file complete", slog.String("file", f), slog.Uint64("lines", st.read))
			return nil
		})
	}
	go func() {
		readers.Wait()
		close(books)
	}()

	g.Go(func() error {
		for b := range books {
			if err := sink(gctx, b); err != nil {
				return errors.Wrapf(err, "write book %q", b.Title)
			}
			total.add(counts{imported: 1})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
