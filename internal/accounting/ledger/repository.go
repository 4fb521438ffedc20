package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL posting repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const postingColumns = `id, number, date, source_kind, source_id, journal_type, reference, description, status, posted_by, posted_at, reversal_of, created_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetPosting(ctx context.Context, id int64) (Posting, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id=$1`, id)
	posting, err := scanPosting(row)
	if err != nil {
		return Posting{}, err
	}
	posting.Lines, err = queryLines(ctx, r.pool, id)
	return posting, err
}

func (r *repository) ListBySource(ctx context.Context, src SourceRef) ([]Posting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+postingColumns+` FROM postings
WHERE source_kind=$1 AND source_id=$2 ORDER BY id ASC`, src.Kind, src.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var postings []Posting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, posting)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range postings {
		postings[i].Lines, err = queryLines(ctx, r.pool, postings[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return postings, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Tx() pgx.Tx {
	return r.tx
}

func (r *txRepository) InsertPosting(ctx context.Context, p Posting) (Posting, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO postings (date, source_kind, source_id, journal_type, reference, description, status, posted_by, posted_at, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, number, created_at`,
		p.Date, p.Source.Kind, p.Source.ID, p.JournalType, p.Reference, p.Description, p.Status, nullInt(p.PostedBy), p.PostedAt, p.ReversalOf)
	if err := row.Scan(&p.ID, &p.Number, &p.CreatedAt); err != nil {
		return Posting{}, err
	}
	return p, nil
}

func (r *txRepository) InsertLines(ctx context.Context, postingID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO posting_lines (posting_id, account_id, debit, credit, description, recon_status)
VALUES ($1,$2,$3,$4,$5,$6)`,
			postingID, line.AccountID, num(line.Debit), num(line.Credit), line.Description, ReconUncleared); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, src SourceRef, journalType string, postingID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (source_kind, source_id, journal_type, posting_id) VALUES ($1,$2,$3,$4)`,
		src.Kind, src.ID, journalType, postingID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) UnlinkSource(ctx context.Context, src SourceRef, journalType string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM source_links WHERE source_kind=$1 AND source_id=$2 AND journal_type=$3`,
		src.Kind, src.ID, journalType)
	return err
}

func (r *txRepository) GetPostingWithLines(ctx context.Context, id int64) (Posting, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id=$1 FOR UPDATE`, id)
	posting, err := scanPosting(row)
	if err != nil {
		return Posting{}, err
	}
	posting.Lines, err = queryLines(ctx, r.tx, id)
	return posting, err
}

func (r *txRepository) GetActiveBySource(ctx context.Context, src SourceRef, journalType string) (Posting, error) {
	row := r.tx.QueryRow(ctx, `SELECT p.id, p.number, p.date, p.source_kind, p.source_id, p.journal_type, p.reference, p.description, p.status, p.posted_by, p.posted_at, p.reversal_of, p.created_at FROM postings p
JOIN source_links sl ON sl.posting_id = p.id
WHERE sl.source_kind=$1 AND sl.source_id=$2 AND sl.journal_type=$3`, src.Kind, src.ID, journalType)
	posting, err := scanPosting(row)
	if err != nil {
		return Posting{}, err
	}
	posting.Lines, err = queryLines(ctx, r.tx, posting.ID)
	return posting, err
}

func (r *txRepository) MarkReversed(ctx context.Context, postingID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE postings SET status=$2, reversed_by=$3 WHERE id=$1 AND status=$4`,
		postingID, PostingStatusReversed, reversalID, PostingStatusPosted)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPostingNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, postingID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.posting_id, l.account_id, p.date, l.debit::text, l.credit::text, l.description, l.recon_id, l.recon_status, l.recon_date, l.created_at
FROM posting_lines l JOIN postings p ON p.id = l.posting_id
WHERE l.posting_id=$1 ORDER BY l.id ASC`, postingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		line, err := ScanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ScanLine reads one posting line from a row shaped as id, posting_id,
// account_id, date, debit::text, credit::text, description, recon_id,
// recon_status, recon_date, created_at.
func ScanLine(row pgx.Row) (Line, error) {
	var line Line
	var debit, credit string
	if err := row.Scan(&line.ID, &line.PostingID, &line.AccountID, &line.Date, &debit, &credit, &line.Description, &line.ReconID, &line.ReconStatus, &line.ReconDate, &line.CreatedAt); err != nil {
		return Line{}, err
	}
	var err error
	if line.Debit, err = decimal.NewFromString(debit); err != nil {
		return Line{}, err
	}
	if line.Credit, err = decimal.NewFromString(credit); err != nil {
		return Line{}, err
	}
	return line, nil
}

func scanPosting(row pgx.Row) (Posting, error) {
	var p Posting
	var postedBy *int64
	err := row.Scan(&p.ID, &p.Number, &p.Date, &p.Source.Kind, &p.Source.ID, &p.JournalType, &p.Reference, &p.Description, &p.Status, &postedBy, &p.PostedAt, &p.ReversalOf, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Posting{}, ErrPostingNotFound
		}
		return Posting{}, err
	}
	if postedBy != nil {
		p.PostedBy = *postedBy
	}
	return p, nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func num(v decimal.Decimal) string {
	return v.StringFixed(2)
}
