package database

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/database/repository"
)

type fixture struct {
	daysAgo  int
	customer string
	invoice  string
	item     string
	qty      string
	kind     string
	ticket   string
	rtn      string
	rep      string
	total    string
	reason   string
}

var fixtures = []fixture{
	{3, "ACC1001", "INV10001", "ITM-01", "2", "Credit Memo", "R-1001", "", "Ann Lee", "412.50", "Damaged in transit"},
	{12, "ACC1001", "INV10002", "ITM-07", "1", "Credit Memo", "R-1002", "RTN5521", "Ann Lee", "89.99", "Wrong item shipped"},
	{35, "BRX2040", "INV10010", "ITM-11", "10", "Rebill", "R-1003", "", "Dev Watts", "3,150.00", "Pricing error"},
	{41, "BRX2040", "INV10010", "ITM-12", "4", "Rebill", "R-1003", "", "Dev Watts", "640.00", "Pricing error"},
	{68, "CAL3300", "INV10022", "ITM-02", "1", "Credit Memo", "R-1004", "", "Jo Freeman", "$12,480.00", "Contract rebate"},
	{95, "CAL3300", "INV10023", "ITM-02", "3", "Credit Memo", "R-1005", "nan", "Jo Freeman", "220", "Short shipment"},
	{5, "DLM4100", "INV10040", "ITM-30", "6", "Return", "R-1006", "", "", "1,020.00", "Customer return"},
	{5, "DLM4100", "INV10040", "ITM-30", "6", "Return", "R-1006", "", "", "1,020.00", "Customer return"},
}

// SeedFixtures fills an empty database with sample credit requests dated
// relative to now, one day-before reminder and an owner role for email.
// It is idempotent and does nothing when any credit request exists.
func SeedFixtures(ctx context.Context, db *sql.DB, now time.Time, email string) error {
	credits := repository.NewCreditRepo(db)
	existing, err := credits.List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	for idx, f := range fixtures {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("credit:"+f.invoice+"|"+f.item+"|"+strconv.Itoa(idx))).String()
		rec := credit.Record{
			ID:                 id,
			Date:               now.AddDate(0, 0, -f.daysAgo).Format("2006-01-02"),
			CustomerNumber:     f.customer,
			InvoiceNumber:      f.invoice,
			ItemNumber:         f.item,
			QTY:                f.qty,
			CreditType:         f.kind,
			TicketNumber:       f.ticket,
			RTNCRNo:            f.rtn,
			SalesRep:           f.rep,
			CreditRequestTotal: f.total,
			Reason:             f.reason,
			Status:             credit.FormatStatusLine(now.AddDate(0, 0, -f.daysAgo), "SYSTEM", "Request received"),
		}
		if _, err := credits.Insert(ctx, rec); err != nil {
			return err
		}
	}

	rem := credit.Reminder{
		Key:             uuid.NewSHA1(uuid.NameSpaceOID, []byte("reminder:R-1003")).String(),
		TicketNumber:    "R-1003",
		CustomerNumber:  "BRX2040",
		InvoiceNumber:   "INV10010",
		DueDate:         now.AddDate(0, 0, 1).Format("2006-01-02"),
		Note:            "Confirm rebill pricing with customer",
		RemindDayBefore: true,
		CreatedAt:       now.UTC().Format(time.RFC3339),
		CreatedBy:       "SYSTEM",
	}.Normalized()
	if err := repository.NewReminderRepo(db).Put(ctx, rem); err != nil {
		return err
	}

	if email != "" {
		uid := uuid.NewSHA1(uuid.NameSpaceOID, []byte("user:"+email)).String()
		if err := repository.NewRoleRepo(db).Upsert(ctx, uid, email, "owner"); err != nil {
			return err
		}
	}
	return nil
}
