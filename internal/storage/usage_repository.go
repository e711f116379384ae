package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"credgate/internal/models"
)

// AdmitResult reports the counters after a request was admitted and counted.
type AdmitResult struct {
	TotalRequests   int64
	DailyRequests   int
	MonthlyRequests int
}

// UsageRepository owns the per-key counter rows. The admission path runs a
// single conditional upsert so the ceiling check, the day/month rollover and
// the increment are one atomic unit in the database; concurrent workers can
// never both observe the same pre-increment counter and over-admit.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// admitQuery counts one request against the daily and monthly ceilings.
//
// $2 is the caller's local calendar date, computed from the key's timezone.
// The CASE expressions roll counters over when the stored last_request_date
// falls in an earlier local day/month, and the WHERE guards evaluate the
// ceilings against the *rolled-over* value, so reset and check-and-increment
// happen inside the same statement. A ceiling of zero or less is unlimited.
// When a guard fails the upsert updates nothing and returns no row.
const admitQuery = `
	INSERT INTO api_usage
		(api_key_id, total_requests, daily_requests, monthly_requests, last_request_date, updated_at)
	VALUES ($1, 1, 1, 1, $2::date, NOW())
	ON CONFLICT (api_key_id) DO UPDATE SET
		total_requests = api_usage.total_requests + 1,
		daily_requests = CASE
			WHEN api_usage.last_request_date = $2::date THEN api_usage.daily_requests + 1
			ELSE 1
		END,
		monthly_requests = CASE
			WHEN DATE_TRUNC('month', api_usage.last_request_date) = DATE_TRUNC('month', $2::date)
				THEN api_usage.monthly_requests + 1
			ELSE 1
		END,
		last_request_date = $2::date,
		updated_at = NOW()
	WHERE ($3 <= 0 OR (CASE
			WHEN api_usage.last_request_date = $2::date THEN api_usage.daily_requests
			ELSE 0
		END) < $3)
	  AND ($4 <= 0 OR (CASE
			WHEN DATE_TRUNC('month', api_usage.last_request_date) = DATE_TRUNC('month', $2::date)
				THEN api_usage.monthly_requests
			ELSE 0
		END) < $4)
	RETURNING total_requests, daily_requests, monthly_requests`

// AdmitAndCount atomically checks the ceilings and counts one request.
// localDate must be the key's local date formatted as YYYY-MM-DD. Returns
// admitted=false without mutating anything when a ceiling is exhausted.
func (r *UsageRepository) AdmitAndCount(ctx context.Context, keyID string, localDate string, dailyLimit, monthlyLimit int) (AdmitResult, bool, error) {
	id, err := uuid.Parse(keyID)
	if err != nil {
		return AdmitResult{}, false, fmt.Errorf("invalid API key id: %w", err)
	}

	var result AdmitResult
	err = r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.QueryRowxContext(ctx, admitQuery, id, localDate, dailyLimit, monthlyLimit).
			Scan(&result.TotalRequests, &result.DailyRequests, &result.MonthlyRequests)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			// Guard rejected: over a ceiling, nothing was counted.
			return AdmitResult{}, false, nil
		}
		return AdmitResult{}, false, fmt.Errorf("failed to count request: %w", err)
	}

	return result, true, nil
}

// Snapshot returns the current counter row without mutating it.
func (r *UsageRepository) Snapshot(ctx context.Context, keyID string) (*models.Usage, error) {
	id, err := uuid.Parse(keyID)
	if err != nil {
		return nil, fmt.Errorf("invalid API key id: %w", err)
	}

	var usage models.Usage
	query := `
		SELECT api_key_id, total_requests, daily_requests, monthly_requests,
		       last_request_date, updated_at
		FROM api_usage
		WHERE api_key_id = $1`

	err = r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.GetContext(ctx, &usage, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUsageNotFound
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return &usage, nil
}

// ResetDaily zeroes daily counters for keys in the given timezone whose last
// request fell on an earlier local day. Run by the scheduler; the admission
// statement stays correct without it.
func (r *UsageRepository) ResetDaily(ctx context.Context, timezone, localDate string) (int64, error) {
	query := `
		UPDATE api_usage au
		SET daily_requests = 0, updated_at = NOW()
		FROM api_keys ak
		WHERE au.api_key_id = ak.id
		  AND ak.timezone = $1
		  AND au.last_request_date < $2::date
		  AND au.daily_requests > 0`

	res, err := r.db.conn.ExecContext(ctx, query, timezone, localDate)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily usage: %w", err)
	}

	return res.RowsAffected()
}

// ResetMonthly zeroes monthly counters for keys in the given timezone whose
// last request fell in an earlier local month.
func (r *UsageRepository) ResetMonthly(ctx context.Context, timezone, localDate string) (int64, error) {
	query := `
		UPDATE api_usage au
		SET monthly_requests = 0, updated_at = NOW()
		FROM api_keys ak
		WHERE au.api_key_id = ak.id
		  AND ak.timezone = $1
		  AND DATE_TRUNC('month', au.last_request_date) < DATE_TRUNC('month', $2::date)
		  AND au.monthly_requests > 0`

	res, err := r.db.conn.ExecContext(ctx, query, timezone, localDate)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly usage: %w", err)
	}

	return res.RowsAffected()
}
