package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/news"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const articleColumns = "title, description, link, source, published_at, time_known, summary, sentiment, alerted, fetched_at"

// PostgresStore keeps the archive in PostgreSQL. A NULL sentiment
// column means the article was never analyzed, which the dashboard
// exposes as its own filter state.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db, log: logger.Component("storage")}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.log.Info("postgres store connected")
	return store, nil
}

func (p *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id SERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		link TEXT UNIQUE NOT NULL,
		source VARCHAR(100),
		published_at TIMESTAMPTZ NOT NULL,
		time_known BOOLEAN NOT NULL DEFAULT TRUE,
		summary TEXT,
		sentiment VARCHAR(10),
		alerted BOOLEAN NOT NULL DEFAULT FALSE,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
	CREATE INDEX IF NOT EXISTS idx_articles_sentiment ON articles(sentiment);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
	CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);
	`

	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Insert(ctx context.Context, item news.Item) (bool, error) {
	query, args, err := psql.Insert("articles").
		Columns("title", "description", "link", "source", "published_at",
			"time_known", "summary", "sentiment", "alerted", "fetched_at").
		Values(item.Title, item.Description, item.Link, item.Source, item.PublishedAt,
			item.TimeKnown, item.Summary, sentimentValue(item.Sentiment), item.Alerted, item.FetchedAt).
		Suffix("ON CONFLICT (link) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict on link, the article was already stored.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	return true, nil
}

func (p *PostgresStore) Exists(ctx context.Context, link string) (bool, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("articles").
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var count int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check article: %w", err)
	}
	return count > 0, nil
}

func (p *PostgresStore) Get(ctx context.Context, link string) (*news.Item, error) {
	query, args, err := psql.Select(articleColumns).
		From("articles").
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	item, err := scanArticle(rows)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (p *PostgresStore) UpdateEnrichment(ctx context.Context, link, summary string, sentiment news.Sentiment) error {
	query, args, err := psql.Update("articles").
		Set("summary", summary).
		Set("sentiment", sentimentValue(sentiment)).
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update enrichment: %w", err)
	}
	return nil
}

func (p *PostgresStore) QueryRecent(ctx context.Context, filter QueryFilter) ([]news.Item, error) {
	builder := psql.Select(articleColumns).
		From("articles").
		OrderBy("published_at DESC")

	if filter.Unanalyzed {
		builder = builder.Where("sentiment IS NULL")
	} else if filter.Sentiment != "" {
		builder = builder.Where(sq.Eq{"sentiment": string(filter.Sentiment)})
	}
	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Window > 0 {
		builder = builder.Where(sq.Gt{"published_at": time.Now().Add(-filter.Window)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		item, err := scanArticle(rows)
		if err != nil {
			p.log.Warn("error scanning article row", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (p *PostgresStore) AlreadyAlerted(ctx context.Context, link string) (bool, error) {
	query, args, err := psql.Select("alerted").
		From("articles").
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build alerted query: %w", err)
	}

	var alerted bool
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&alerted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check alerted: %w", err)
	}
	return alerted, nil
}

func (p *PostgresStore) MarkAlerted(ctx context.Context, link string) error {
	query, args, err := psql.Update("articles").
		Set("alerted", true).
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark alerted: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark alerted: %w", err)
	}
	return nil
}

func (p *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&s.Total); err != nil {
		return s, fmt.Errorf("count articles: %w", err)
	}
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE sentiment IS NOT NULL`).Scan(&s.Analyzed); err != nil {
		return s, fmt.Errorf("count analyzed: %w", err)
	}
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE alerted`).Scan(&s.Alerted); err != nil {
		return s, fmt.Errorf("count alerted: %w", err)
	}
	dayAgo := time.Now().Add(-24 * time.Hour)
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE published_at > $1`, dayAgo).Scan(&s.Last24h); err != nil {
		return s, fmt.Errorf("count recent: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `SELECT sentiment, COUNT(*) FROM articles WHERE sentiment IS NOT NULL GROUP BY sentiment`)
	if err != nil {
		return s, fmt.Errorf("count sentiments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sentiment string
		var count int
		if err := rows.Scan(&sentiment, &count); err != nil {
			continue
		}
		switch news.Sentiment(sentiment) {
		case news.SentimentBullish:
			s.Bullish = count
		case news.SentimentBearish:
			s.Bearish = count
		case news.SentimentNeutral:
			s.Neutral = count
		}
	}
	return s, rows.Err()
}

func (p *PostgresStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)

	result, err := p.db.ExecContext(ctx, `DELETE FROM articles WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		p.log.Info("cleaned up old articles", "removed", rows)
	}
	return int(rows), nil
}

func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func sentimentValue(s news.Sentiment) sql.NullString {
	return sql.NullString{String: string(s), Valid: s != ""}
}

func scanArticle(rows *sql.Rows) (news.Item, error) {
	var item news.Item
	var description, summary, sentiment sql.NullString
	err := rows.Scan(&item.Title, &description, &item.Link, &item.Source,
		&item.PublishedAt, &item.TimeKnown, &summary, &sentiment,
		&item.Alerted, &item.FetchedAt)
	if err != nil {
		return item, err
	}
	item.Description = description.String
	item.Summary = summary.String
	item.Sentiment = news.Sentiment(sentiment.String)
	return item, nil
}
