package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// CreditRepo handles credit_requests.
type CreditRepo struct {
	db           *sql.DB
	pollInterval time.Duration
}

func NewCreditRepo(db *sql.DB) *CreditRepo {
	return &CreditRepo{db: db, pollInterval: DefaultPollInterval}
}

// PollEvery sets the Watch interval.
func (r *CreditRepo) PollEvery(d time.Duration) *CreditRepo {
	r.pollInterval = d
	return r
}

const creditColumns = `id, combo_key, date, customer_number, invoice_number, item_number, qty, credit_type,
 ticket_number, rtn_cr_no, sales_rep, credit_request_total, reason, status`

func (r *CreditRepo) List(ctx context.Context) ([]credit.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+creditColumns+` FROM credit_requests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []credit.Record
	for rows.Next() {
		rec, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *CreditRepo) Get(ctx context.Context, id string) (credit.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+creditColumns+` FROM credit_requests WHERE id = ?`, id)
	rec, err := scanCredit(row)
	if err == sql.ErrNoRows {
		return credit.Record{}, ErrNotFound
	}
	return rec, err
}

// Insert stores rec and returns its id, assigning a new one when rec has none.
func (r *CreditRepo) Insert(ctx context.Context, rec credit.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO credit_requests(`+creditColumns+`, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`, creditArgs(rec)...)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Update writes fields onto the row with id. Field names are store field
// names; the combo key follows invoice and item.
func (r *CreditRepo) Update(ctx context.Context, id string, fields map[string]string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	for name, v := range fields {
		if name == credit.FieldID {
			continue
		}
		if !rec.Set(name, v) {
			return fmt.Errorf("update %s: unknown field %q", id, name)
		}
	}
	rec.ComboKey = rec.Combo()
	_, err = r.db.ExecContext(ctx, `
	UPDATE credit_requests SET
	 combo_key=?, date=?, customer_number=?, invoice_number=?, item_number=?, qty=?, credit_type=?,
	 ticket_number=?, rtn_cr_no=?, sales_rep=?, credit_request_total=?, reason=?, status=?,
	 updated_at=CURRENT_TIMESTAMP
	WHERE id = ?`, append(creditArgs(rec)[1:], rec.ID)...)
	return err
}

func (r *CreditRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credit_requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch delivers the full collection now and on every change until ctx is done.
func (r *CreditRepo) Watch(ctx context.Context, fn func([]credit.Record)) error {
	return poll(ctx, r.pollInterval, r.List, fn)
}

func creditArgs(rec credit.Record) []any {
	return []any{
		rec.ID, rec.Combo(), rec.Date, rec.CustomerNumber, rec.InvoiceNumber, rec.ItemNumber, rec.QTY,
		rec.CreditType, rec.TicketNumber, rec.RTNCRNo, rec.SalesRep, rec.CreditRequestTotal, rec.Reason, rec.Status,
	}
}

func scanCredit(row scanner) (credit.Record, error) {
	var rec credit.Record
	err := row.Scan(&rec.ID, &rec.ComboKey, &rec.Date, &rec.CustomerNumber, &rec.InvoiceNumber, &rec.ItemNumber,
		&rec.QTY, &rec.CreditType, &rec.TicketNumber, &rec.RTNCRNo, &rec.SalesRep, &rec.CreditRequestTotal,
		&rec.Reason, &rec.Status)
	return rec, err
}
