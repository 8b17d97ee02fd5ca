package pgx

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrLeaseLost cancels the lease context when renewal fails.
var ErrLeaseLost = errors.New("run lease lost")

type leaseConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// LeaseOptions controls how long a run lease lives and whether Acquire
// waits for a busy run.
type LeaseOptions struct {
	TTL        time.Duration
	RenewEvery time.Duration

	Wait         bool
	PollInterval time.Duration
	PollJitter   time.Duration
}

func (o LeaseOptions) withDefaults() LeaseOptions {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.PollJitter < 0 {
		o.PollJitter = 0
	}
	return o
}

var _ store.RunLocker = (*RunLeaser)(nil)

// RunLeaser hands out expiring, renewed leases on extraction runs so a
// redelivered job never runs twice at the same time.
type RunLeaser struct {
	conn leaseConn
	opts LeaseOptions
}

// NewRunLeaser creates a leaser on conn. Migrate must have run.
func NewRunLeaser(conn leaseConn, opts LeaseOptions) *RunLeaser {
	return &RunLeaser{conn: conn, opts: opts.withDefaults()}
}

// RunLease is a held lease. Its Context is cancelled with ErrLeaseLost
// when renewal fails.
type RunLease struct {
	RunID   string
	Holder  string
	Context context.Context

	conn   leaseConn
	cancel context.CancelCauseFunc
	once   sync.Once
	stop   chan struct{}
}

// WithRunLease runs fn while holding the lease on runID.
func (l *RunLeaser) WithRunLease(ctx context.Context, runID string, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, runID)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	return fn(lease.Context)
}

// Acquire takes the lease on runID. An expired lease of another holder is
// taken over.
func (l *RunLeaser) Acquire(ctx context.Context, runID string) (*RunLease, error) {
	if runID == "" {
		return nil, errors.New("run id is empty")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	holder := "worker-" + id
	ttlMs := l.opts.TTL.Milliseconds()

	for {
		ok, err := l.tryAcquire(ctx, runID, holder, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !l.opts.Wait {
			return nil, store.ErrRunBusy
		}
		if err := sleepJitter(ctx, l.opts.PollInterval, l.opts.PollJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &RunLease{
		RunID:   runID,
		Holder:  holder,
		Context: leaseCtx,
		conn:    l.conn,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}
	go lease.keepAlive(l.opts.RenewEvery, ttlMs)
	return lease, nil
}

func (l *RunLeaser) tryAcquire(ctx context.Context, runID, holder string, ttlMs int64) (bool, error) {
	var got string
	err := l.conn.QueryRow(ctx, acquireLeaseSQL, runID, holder, ttlMs).Scan(&got)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == runID, nil
}

// Release stops renewal and deletes the lease if it is still held.
func (r *RunLease) Release(ctx context.Context) error {
	r.once.Do(func() {
		close(r.stop)
		r.cancel(context.Canceled)
	})
	_, err := r.conn.Exec(ctx, releaseLeaseSQL, r.RunID, r.Holder)
	return err
}

func (r *RunLease) keepAlive(every time.Duration, ttlMs int64) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.Context.Done():
			return
		case <-t.C:
			if err := r.renew(ttlMs); err != nil {
				r.cancel(err)
				return
			}
		}
	}
}

func (r *RunLease) renew(ttlMs int64) error {
	for attempt := range 3 {
		ctx, cancel := context.WithTimeout(r.Context, 15*time.Second)
		var got string
		err := r.conn.QueryRow(ctx, renewLeaseSQL, r.RunID, r.Holder, ttlMs).Scan(&got)
		cancel()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, pgxv5.ErrNoRows):
			return ErrLeaseLost
		case attempt == 2:
			return err
		}
		if err := sleepJitter(r.Context, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLeaseLost
}

func sleepJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const acquireLeaseSQL = `
INSERT INTO run_leases (run_id, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (run_id) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE run_leases.expires_at < now()
   OR run_leases.holder = EXCLUDED.holder
RETURNING run_id;
`

const renewLeaseSQL = `
UPDATE run_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE run_id = $1 AND holder = $2
RETURNING run_id;
`

const releaseLeaseSQL = `
DELETE FROM run_leases
WHERE run_id = $1 AND holder = $2;
`
