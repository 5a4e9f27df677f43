package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"scout_bot/internal/model"
	"scout_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases from
	// splitting across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetCursor returns the cursor for a source, creating it at position 0 on
// first access.
func (s *SQLite) GetCursor(ctx context.Context, source string) (*model.Cursor, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO scanner_state (source_name, last_seen_id) VALUES (?, 0)`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("init cursor: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT source_name, last_seen_id, last_scan_at FROM scanner_state WHERE source_name = ?`,
		source,
	)
	var c model.Cursor
	var lastScan sql.NullString
	if err := row.Scan(&c.SourceName, &c.LastSeenID, &lastScan); err != nil {
		return nil, fmt.Errorf("scan cursor: %w", err)
	}
	if lastScan.Valid {
		t, _ := time.Parse(timeLayout, lastScan.String)
		c.LastScanAt = &t
	}
	return &c, nil
}

// AdvanceCursor moves a cursor forward. A position behind the stored one is
// silently ignored, so the position never regresses under overlapping scans.
func (s *SQLite) AdvanceCursor(ctx context.Context, source string, lastSeenID int64) error {
	return advanceCursor(ctx, s.db, source, lastSeenID)
}

func advanceCursor(ctx context.Context, e execer, source string, lastSeenID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := e.ExecContext(ctx,
		`UPDATE scanner_state SET last_seen_id = ?, last_scan_at = ?
		 WHERE source_name = ? AND last_seen_id <= ?`,
		lastSeenID, now, source, lastSeenID,
	)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// GetOrCreateSubscriber returns the subscriber for a chat, creating it on
// first contact.
func (s *SQLite) GetOrCreateSubscriber(ctx context.Context, chatID int64) (*model.Subscriber, error) {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers (chat_id, created_at) VALUES (?, ?)`,
		chatID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscriber: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, created_at FROM subscribers WHERE chat_id = ?`, chatID,
	)
	return scanSubscriber(row)
}

// GetSubscriber returns a subscriber by its ID.
func (s *SQLite) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, created_at FROM subscribers WHERE id = ?`, id,
	)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func scanSubscriber(row *sql.Row) (*model.Subscriber, error) {
	var sub model.Subscriber
	var created string
	if err := row.Scan(&sub.ID, &sub.ChatID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	sub.CreatedAt, _ = time.Parse(timeLayout, created)
	return &sub, nil
}

// CreateKeyword inserts a new keyword and populates its ID and CreatedAt.
func (s *SQLite) CreateKeyword(ctx context.Context, k *model.Keyword) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (subscriber_id, phrase, is_active, created_at) VALUES (?, ?, ?, ?)`,
		k.SubscriberID, k.Phrase, boolToInt(k.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	k.ID = id
	k.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetKeyword returns a single keyword by its ID.
func (s *SQLite) GetKeyword(ctx context.Context, id int64) (*model.Keyword, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subscriber_id, phrase, is_active, created_at FROM keywords WHERE id = ?`, id,
	)
	var k model.Keyword
	var isActive int
	var created string
	if err := row.Scan(&k.ID, &k.SubscriberID, &k.Phrase, &isActive, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan keyword: %w", err)
	}
	k.IsActive = isActive == 1
	k.CreatedAt, _ = time.Parse(timeLayout, created)
	return &k, nil
}

// ListKeywords returns all keywords belonging to the given subscriber.
func (s *SQLite) ListKeywords(ctx context.Context, subscriberID int64) ([]model.Keyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, subscriber_id, phrase, is_active, created_at
		 FROM keywords WHERE subscriber_id = ? ORDER BY id`, subscriberID)
}

// ListActiveKeywords returns every active keyword across all subscribers.
func (s *SQLite) ListActiveKeywords(ctx context.Context) ([]model.Keyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, subscriber_id, phrase, is_active, created_at
		 FROM keywords WHERE is_active = 1 ORDER BY id`)
}

func (s *SQLite) queryKeywords(ctx context.Context, query string, args ...any) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []model.Keyword
	for rows.Next() {
		var k model.Keyword
		var isActive int
		var created string
		if err := rows.Scan(&k.ID, &k.SubscriberID, &k.Phrase, &isActive, &created); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		k.IsActive = isActive == 1
		k.CreatedAt, _ = time.Parse(timeLayout, created)
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// UpdateKeyword persists changes to an existing keyword.
func (s *SQLite) UpdateKeyword(ctx context.Context, k *model.Keyword) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET phrase = ?, is_active = ? WHERE id = ?`,
		k.Phrase, boolToInt(k.IsActive), k.ID,
	)
	if err != nil {
		return fmt.Errorf("update keyword: %w", err)
	}
	return nil
}

// DeleteKeyword removes a keyword by its ID.
func (s *SQLite) DeleteKeyword(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	return nil
}

// StoreItem stores a content item. Re-storing an already-known
// source_item_id is a no-op; the return value reports whether a new row was
// actually inserted.
func (s *SQLite) StoreItem(ctx context.Context, item *model.ContentItem) (bool, error) {
	return storeItem(ctx, s.db, item)
}

func storeItem(ctx context.Context, e execer, item *model.ContentItem) (bool, error) {
	now := time.Now().UTC()
	if item.DiscoveredAt.IsZero() {
		item.DiscoveredAt = now
	}
	res, err := e.ExecContext(ctx,
		`INSERT OR IGNORE INTO items
		 (source_item_id, kind, title, body, url, author, score, parent_id, created_at, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SourceItemID, string(item.Kind), item.Title, item.Body, item.URL,
		item.Author, item.Score, item.ParentID,
		item.CreatedAt.UTC().Format(timeLayout), item.DiscoveredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		if id, err := res.LastInsertId(); err == nil {
			item.ID = id
		}
	}
	return affected > 0, nil
}

// GetItem returns a stored item by its source item ID.
func (s *SQLite) GetItem(ctx context.Context, sourceItemID int64) (*model.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_item_id, kind, title, body, url, author, score, parent_id, created_at, discovered_at
		 FROM items WHERE source_item_id = ?`, sourceItemID,
	)
	var it model.ContentItem
	var kind string
	var title, body, url sql.NullString
	var parent sql.NullInt64
	var created, discovered string
	err := row.Scan(&it.ID, &it.SourceItemID, &kind, &title, &body, &url,
		&it.Author, &it.Score, &parent, &created, &discovered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Kind = model.ItemKind(kind)
	it.Title = title.String
	it.Body = body.String
	it.URL = url.String
	it.ParentID = parent.Int64
	it.CreatedAt, _ = time.Parse(timeLayout, created)
	it.DiscoveredAt, _ = time.Parse(timeLayout, discovered)
	return &it, nil
}

// CreateCampaign inserts a campaign with its subreddits and keywords.
func (s *SQLite) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC().Format(timeLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO campaigns (name, chat_id, system_prompt, scan_interval_minutes, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.ChatID, c.SystemPrompt, c.ScanInterval, boolToInt(c.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt, _ = time.Parse(timeLayout, now)

	for i := range c.Subreddits {
		sub := &c.Subreddits[i]
		sub.CampaignID = id
		res, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_subreddits (campaign_id, name, is_active) VALUES (?, ?, ?)`,
			id, sub.Name, boolToInt(sub.IsActive),
		)
		if err != nil {
			return fmt.Errorf("insert campaign subreddit: %w", err)
		}
		sub.ID, _ = res.LastInsertId()
	}
	for i := range c.Keywords {
		kw := &c.Keywords[i]
		kw.CampaignID = id
		res, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_keywords (campaign_id, phrase, is_active) VALUES (?, ?, ?)`,
			id, kw.Phrase, boolToInt(kw.IsActive),
		)
		if err != nil {
			return fmt.Errorf("insert campaign keyword: %w", err)
		}
		kw.ID, _ = res.LastInsertId()
	}

	return tx.Commit()
}

// GetCampaign returns a campaign with its subreddits and keywords loaded.
func (s *SQLite) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, chat_id, system_prompt, scan_interval_minutes, is_active, last_scanned_at, created_at
		 FROM campaigns WHERE id = ?`, id,
	)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadCampaignRelations(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns returns all campaigns with their relations loaded.
func (s *SQLite) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.queryCampaigns(ctx,
		`SELECT id, name, chat_id, system_prompt, scan_interval_minutes, is_active, last_scanned_at, created_at
		 FROM campaigns ORDER BY id`)
}

// ListDueCampaigns returns active campaigns that are due for scanning:
// never scanned, or past their scan interval. Campaigns without at least one
// active subreddit and one active keyword are excluded.
func (s *SQLite) ListDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	campaigns, err := s.queryCampaigns(ctx,
		`SELECT id, name, chat_id, system_prompt, scan_interval_minutes, is_active, last_scanned_at, created_at
		 FROM campaigns
		 WHERE is_active = 1
		   AND (last_scanned_at IS NULL
		        OR datetime(last_scanned_at, '+' || scan_interval_minutes || ' minutes') <= datetime(?))
		 ORDER BY id`,
		now.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}

	var due []model.Campaign
	for _, c := range campaigns {
		if len(c.ActiveSubreddits()) == 0 || len(c.ActiveKeywords()) == 0 {
			continue
		}
		due = append(due, c)
	}
	return due, nil
}

func (s *SQLite) queryCampaigns(ctx context.Context, query string, args ...any) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range campaigns {
		if err := s.loadCampaignRelations(ctx, &campaigns[i]); err != nil {
			return nil, err
		}
	}
	return campaigns, nil
}

func (s *SQLite) loadCampaignRelations(ctx context.Context, c *model.Campaign) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, name, is_active FROM campaign_subreddits WHERE campaign_id = ? ORDER BY id`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("query campaign subreddits: %w", err)
	}
	for rows.Next() {
		var sub model.CampaignSubreddit
		var isActive int
		if err := rows.Scan(&sub.ID, &sub.CampaignID, &sub.Name, &isActive); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan campaign subreddit: %w", err)
		}
		sub.IsActive = isActive == 1
		c.Subreddits = append(c.Subreddits, sub)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, campaign_id, phrase, is_active FROM campaign_keywords WHERE campaign_id = ? ORDER BY id`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("query campaign keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kw model.CampaignKeyword
		var isActive int
		if err := rows.Scan(&kw.ID, &kw.CampaignID, &kw.Phrase, &isActive); err != nil {
			return fmt.Errorf("scan campaign keyword: %w", err)
		}
		kw.IsActive = isActive == 1
		c.Keywords = append(c.Keywords, kw)
	}
	return rows.Err()
}

// AddCampaignSubreddit attaches a subreddit to an existing campaign.
func (s *SQLite) AddCampaignSubreddit(ctx context.Context, sub *model.CampaignSubreddit) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_subreddits (campaign_id, name, is_active) VALUES (?, ?, ?)`,
		sub.CampaignID, sub.Name, boolToInt(sub.IsActive),
	)
	if err != nil {
		return fmt.Errorf("insert campaign subreddit: %w", err)
	}
	sub.ID, _ = res.LastInsertId()
	return nil
}

// AddCampaignKeyword attaches a keyword to an existing campaign.
func (s *SQLite) AddCampaignKeyword(ctx context.Context, kw *model.CampaignKeyword) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_keywords (campaign_id, phrase, is_active) VALUES (?, ?, ?)`,
		kw.CampaignID, kw.Phrase, boolToInt(kw.IsActive),
	)
	if err != nil {
		return fmt.Errorf("insert campaign keyword: %w", err)
	}
	kw.ID, _ = res.LastInsertId()
	return nil
}

// CreateMatch inserts a match, returning ErrDuplicate when a match for the
// same (owner, item, keyword) tuple already exists. The unique index is the
// durable backstop, so two concurrent scanners cannot both insert.
func (s *SQLite) CreateMatch(ctx context.Context, m *model.Match) error {
	return createMatch(ctx, s.db, m)
}

func createMatch(ctx context.Context, e execer, m *model.Match) error {
	now := time.Now().UTC()
	if m.DiscoveredAt.IsZero() {
		m.DiscoveredAt = now
	}
	if m.Status == "" {
		m.Status = model.StatusPending
	}
	res, err := e.ExecContext(ctx,
		`INSERT OR IGNORE INTO matches
		 (owner_kind, owner_id, item_ref, matched_keyword, source, kind, title, snippet,
		  permalink, author, item_created_at, discovered_at, status, message_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.OwnerKind), m.OwnerID, m.ItemRef, m.MatchedKeyword, m.Source,
		string(m.Kind), m.Title, m.Snippet, m.Permalink, m.Author,
		m.ItemCreatedAt.UTC().Format(timeLayout), m.DiscoveredAt.UTC().Format(timeLayout),
		string(m.Status), m.MessageID,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

const matchColumns = `id, owner_kind, owner_id, item_ref, matched_keyword, source, kind,
	title, snippet, permalink, author, item_created_at, discovered_at, status, completed_at, message_id`

// GetMatch returns a single match by its ID.
func (s *SQLite) GetMatch(ctx context.Context, id int64) (*model.Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id,
	)
	m, err := scanMatch(row)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListPendingMatches returns matches still awaiting delivery, oldest first.
func (s *SQLite) ListPendingMatches(ctx context.Context, limit int) ([]model.Match, error) {
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE status = ? ORDER BY discovered_at, id LIMIT ?`,
		string(model.StatusPending), limit)
}

// ListUnprocessedMatches returns pending matches that have no summary yet,
// oldest first.
func (s *SQLite) ListUnprocessedMatches(ctx context.Context, limit int) ([]model.Match, error) {
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status = ? AND NOT EXISTS (SELECT 1 FROM summaries WHERE summaries.match_id = matches.id)
		 ORDER BY discovered_at, id LIMIT ?`,
		string(model.StatusPending), limit)
}

func (s *SQLite) queryMatches(ctx context.Context, query string, args ...any) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// UpdateMatchStatus applies a lifecycle transition. It fails with
// ErrInvalidTransition when the current status does not allow the move, and
// sets completed_at when the match is marked done.
func (s *SQLite) UpdateMatchStatus(ctx context.Context, id int64, next model.MatchStatus) error {
	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return err
	}
	if !m.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, next)
	}

	var completed *string
	if next == model.StatusDone {
		v := time.Now().UTC().Format(timeLayout)
		completed = &v
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, completed_at = COALESCE(?, completed_at)
		 WHERE id = ? AND status = ?`,
		string(next), completed, id, string(m.Status),
	)
	if err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	// The status moved under us between read and write.
	if affected == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, next)
	}
	return nil
}

// MarkMatchSent records the delivered message and moves the match to sent.
// Only pending matches are eligible, which makes delivery idempotent.
func (s *SQLite) MarkMatchSent(ctx context.Context, id int64, messageID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, message_id = ? WHERE id = ? AND status = ?`,
		string(model.StatusSent), messageID, id, string(model.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark match sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: match %d is not pending", ErrInvalidTransition, id)
	}
	return nil
}

// CommitScanBatch stores a batch's items and matches and advances the feed
// cursor, all in one transaction. A crash replays at most one batch.
func (s *SQLite) CommitScanBatch(ctx context.Context, batch ScanBatch) (BatchResult, error) {
	var result BatchResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range batch.Items {
		inserted, err := storeItem(ctx, tx, &batch.Items[i])
		if err != nil {
			return BatchResult{}, err
		}
		if inserted {
			result.ItemsStored++
		}
	}
	for i := range batch.Matches {
		err := createMatch(ctx, tx, &batch.Matches[i])
		switch {
		case errors.Is(err, ErrDuplicate):
			result.DuplicatesSkipped++
		case err != nil:
			return BatchResult{}, err
		default:
			result.MatchesCreated++
		}
	}
	if err := advanceCursor(ctx, tx, batch.Source, batch.LastID); err != nil {
		return BatchResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("commit scan batch: %w", err)
	}
	return result, nil
}

// CommitCampaignScan stores a campaign's new matches and stamps
// last_scanned_at in one transaction. The stamp is written even when the
// match list is empty so a flaky subreddit cannot wedge the schedule.
func (s *SQLite) CommitCampaignScan(ctx context.Context, campaignID int64, scannedAt time.Time, matches []model.Match) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var created, duplicates int
	for i := range matches {
		err := createMatch(ctx, tx, &matches[i])
		switch {
		case errors.Is(err, ErrDuplicate):
			duplicates++
		case err != nil:
			return 0, 0, err
		default:
			created++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET last_scanned_at = ? WHERE id = ?`,
		scannedAt.UTC().Format(timeLayout), campaignID,
	); err != nil {
		return 0, 0, fmt.Errorf("update last_scanned_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit campaign scan: %w", err)
	}
	return created, duplicates, nil
}

// CreateSummary inserts a summary, assigning the next version number for
// the match so regeneration never overwrites history.
func (s *SQLite) CreateSummary(ctx context.Context, sum *model.Summary) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (match_id, content, version, created_at)
		 VALUES (?, ?, COALESCE((SELECT MAX(version) FROM summaries WHERE match_id = ?), 0) + 1, ?)`,
		sum.MatchID, sum.Content, sum.MatchID, now,
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sum.ID = id
	sum.CreatedAt, _ = time.Parse(timeLayout, now)

	row := s.db.QueryRowContext(ctx, `SELECT version FROM summaries WHERE id = ?`, id)
	if err := row.Scan(&sum.Version); err != nil {
		return fmt.Errorf("read summary version: %w", err)
	}
	return nil
}

// LatestSummary returns the newest summary version for a match, or
// ErrNotFound when no summary exists.
func (s *SQLite) LatestSummary(ctx context.Context, matchID int64) (*model.Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, match_id, content, version, created_at FROM summaries
		 WHERE match_id = ? ORDER BY version DESC LIMIT 1`, matchID,
	)
	var sum model.Summary
	var created string
	err := row.Scan(&sum.ID, &sum.MatchID, &sum.Content, &sum.Version, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	sum.CreatedAt, _ = time.Parse(timeLayout, created)
	return &sum, nil
}

// GetThread returns the delivery thread for an (owner, source) pair, or
// ErrNotFound when none has been provisioned yet.
func (s *SQLite) GetThread(ctx context.Context, ownerKind model.OwnerKind, ownerID int64, source string) (*model.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_kind, owner_id, source, message_id, created_at
		 FROM threads WHERE owner_kind = ? AND owner_id = ? AND source = ?`,
		string(ownerKind), ownerID, source,
	)
	return scanThread(row)
}

// CreateThread persists a delivery thread. If a concurrent caller already
// provisioned one for the same (owner, source), the existing thread is
// returned instead of creating a second.
func (s *SQLite) CreateThread(ctx context.Context, t *model.Thread) (*model.Thread, error) {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (owner_kind, owner_id, source, message_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(t.OwnerKind), t.OwnerID, t.Source, t.MessageID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return s.GetThread(ctx, t.OwnerKind, t.OwnerID, t.Source)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	var isActive int
	var lastScanned sql.NullString
	var created string
	err := row.Scan(&c.ID, &c.Name, &c.ChatID, &c.SystemPrompt, &c.ScanInterval,
		&isActive, &lastScanned, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	c.IsActive = isActive == 1
	if lastScanned.Valid {
		t, _ := time.Parse(timeLayout, lastScanned.String)
		c.LastScannedAt = &t
	}
	c.CreatedAt, _ = time.Parse(timeLayout, created)
	return &c, nil
}

func scanMatch(row scannable) (*model.Match, error) {
	var m model.Match
	var ownerKind, kind, status string
	var title, snippet, completed sql.NullString
	var itemCreated, discovered string
	err := row.Scan(&m.ID, &ownerKind, &m.OwnerID, &m.ItemRef, &m.MatchedKeyword,
		&m.Source, &kind, &title, &snippet, &m.Permalink, &m.Author,
		&itemCreated, &discovered, &status, &completed, &m.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}
	m.OwnerKind = model.OwnerKind(ownerKind)
	m.Kind = model.ItemKind(kind)
	m.Status = model.MatchStatus(status)
	m.Title = title.String
	m.Snippet = snippet.String
	m.ItemCreatedAt, _ = time.Parse(timeLayout, itemCreated)
	m.DiscoveredAt, _ = time.Parse(timeLayout, discovered)
	if completed.Valid {
		t, _ := time.Parse(timeLayout, completed.String)
		m.CompletedAt = &t
	}
	return &m, nil
}

func scanThread(row *sql.Row) (*model.Thread, error) {
	var t model.Thread
	var ownerKind, created string
	err := row.Scan(&t.ID, &ownerKind, &t.OwnerID, &t.Source, &t.MessageID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan thread: %w", err)
	}
	t.OwnerKind = model.OwnerKind(ownerKind)
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	return &t, nil
}
