package transfer

import (
	"context"
	"net"
	"sync"
	"time"
)

const defaultDialTimeout = 30 * time.Second

// connTracker dials every connection of an FTP session (control and data) and ties
// them to the context of the operation in progress. jlaffaye/ftp only honors a
// context while dialing, so expiry is enforced here with socket deadlines and by
// closing the sockets.
type connTracker struct {
	mu    sync.Mutex
	ctx   context.Context
	conns map[*trackedConn]struct{}
}

// bind makes ctx govern new and existing connections until the returned stop is called.
func (t *connTracker) bind(ctx context.Context) (stop func()) {
	deadline, _ := ctx.Deadline()
	t.setContext(ctx, deadline)

	cancel := context.AfterFunc(ctx, t.closeAll)
	return func() {
		cancel()
		t.setContext(nil, time.Time{})
	}
}

func (t *connTracker) setContext(ctx context.Context, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctx = ctx
	for c := range t.conns {
		_ = c.SetDeadline(deadline)
	}
}

func (t *connTracker) dial(network, addr string) (net.Conn, error) {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	dialer := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tc := &trackedConn{Conn: conn, tracker: t}
	t.mu.Lock()
	if t.conns == nil {
		t.conns = make(map[*trackedConn]struct{})
	}
	t.conns[tc] = struct{}{}
	t.mu.Unlock()
	return tc, nil
}

func (t *connTracker) closeAll() {
	t.mu.Lock()
	conns := t.conns
	t.conns = nil
	t.mu.Unlock()

	for c := range conns {
		_ = c.Conn.Close()
	}
}

func (t *connTracker) forget(c *trackedConn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

type trackedConn struct {
	net.Conn
	tracker *connTracker
}

func (c *trackedConn) Close() error {
	c.tracker.forget(c)
	return c.Conn.Close()
}

// ctxErr is ctx.Err, also reporting an expired deadline whose socket timeout fired
// before the context noticed.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}
