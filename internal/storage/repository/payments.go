package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

const paymentColumns = "id, user_uid, course_id, provider_session_id, status, amount_cents, currency, created_at, paid_at"

func scanPayment(r rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var paidAt sql.NullTime
	if err := r.Scan(&p.ID, &p.UserUID, &p.CourseID, &p.ProviderSessionID, &p.Status,
		&p.AmountCents, &p.Currency, &p.CreatedAt, &paidAt); err != nil {
		return nil, err
	}
	p.PaidAt = nullTime(paidAt)
	return p, nil
}

// CreatePayment сохраняет платёж в статусе pending.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (int64, error) {
	const op = "storage.CreatePayment"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO payments (user_uid, course_id, provider_session_id, status, amount_cents, currency)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, p.UserUID, p.CourseID, p.ProviderSessionID,
		models.PaymentPending, p.AmountCents, p.Currency).Scan(&id); err != nil {
		return 0, wrapErr(op, err)
	}
	return id, nil
}

// GetPaymentBySession возвращает платёж по ID сессии провайдера.
func (s *Storage) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	const op = "storage.GetPaymentBySession"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPayment(s.DB.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE provider_session_id = $1", sessionID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return p, nil
}

// MarkPaymentPaid в одной транзакции отмечает платёж оплаченным и выдаёт
// или продлевает доступ к курсу на accessDays дней. Если платёж уже оплачен,
// ничего не меняется и applied == false.
func (s *Storage) MarkPaymentPaid(ctx context.Context, sessionID string, paidAt time.Time, accessDays *int) (*models.Payment, *models.AccessGrant, bool, error) {
	const op = "storage.MarkPaymentPaid"
	if err := checkCtx(ctx, op); err != nil {
		return nil, nil, false, err
	}

	var (
		payment *models.Payment
		grant   *models.AccessGrant
		applied bool
	)
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		p, err := scanPayment(tx.QueryRowContext(ctx,
			"SELECT "+paymentColumns+" FROM payments WHERE provider_session_id = $1 FOR UPDATE", sessionID))
		if err != nil {
			err = wrapErr(op, err)
			if isNotFound(err) {
				return fmt.Errorf("%s: %w", op, models.ErrPaymentNotFound)
			}
			return err
		}
		payment = p
		if p.Status == models.PaymentPaid {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = 'paid', paid_at = $2 WHERE id = $1`, p.ID, paidAt); err != nil {
			return wrapErr(op, err)
		}
		p.Status = models.PaymentPaid
		p.PaidAt = &paidAt

		g, err := upsertGrantTx(ctx, tx, op, p.UserUID, p.CourseID, models.GrantSourcePurchase, paidAt, accessDays)
		if err != nil {
			return err
		}
		grant = g
		applied = true
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return payment, grant, applied, nil
}

// MarkPaymentExpired отмечает незавершённый платёж истёкшим.
func (s *Storage) MarkPaymentExpired(ctx context.Context, sessionID string) error {
	const op = "storage.MarkPaymentExpired"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `UPDATE payments SET status = 'expired'
			  WHERE provider_session_id = $1 AND status = 'pending'`, sessionID)
	if err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userUID string) ([]models.Payment, error) {
	const op = "storage.ListPayments"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE user_uid = $1 ORDER BY created_at DESC, id DESC", userUID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}
