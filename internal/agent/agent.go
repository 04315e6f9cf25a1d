package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// Backoff bounds for reconnect attempts.
const (
	backoffMin = time.Second
	backoffMax = 60 * time.Second
	ackTimeout = 5 * time.Second
)

// Agent maintains the report session with the server.
type Agent struct {
	cfg       Config
	collector *Collector
	logger    *zap.Logger

	now func() time.Time
}

// New creates an agent.
func New(cfg Config, collector *Collector, logger *zap.Logger) *Agent {
	return &Agent{cfg: cfg, collector: collector, logger: logger, now: time.Now}
}

// Run connects and reports until the context ends. Lost connections are
// re-dialed with exponential backoff; only a clean server close resets it.
func (a *Agent) Run(ctx context.Context) {
	backoff := backoffMin
	for {
		if ctx.Err() != nil {
			return
		}

		reported, err := a.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.logger.Warn("session ended", zap.Int("reports", reported), zap.Error(err))
		}

		// A server that dies right after the first report must not trap
		// the agent in a hot reconnect loop.
		if resetsBackoff(err) {
			backoff = backoffMin
		}
		a.logger.Info("reconnecting", zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// resetsBackoff reports whether the session ended with a deliberate
// server close rather than a network fault or crash.
func resetsBackoff(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}

// session dials the server and reports until the connection breaks,
// returning how many reports were acknowledged or sent.
func (a *Agent) session(ctx context.Context) (int, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, a.cfg.ServerURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + a.cfg.APIKey}},
	})
	cancel()
	if err != nil {
		return 0, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	a.logger.Info("connected", zap.String("server", a.cfg.ServerURL))

	reported := 0
	ticker := time.NewTicker(a.cfg.ReportInterval)
	defer ticker.Stop()

	// First report goes out immediately.
	if err := a.report(ctx, conn); err != nil {
		return reported, err
	}
	reported++

	for {
		select {
		case <-ctx.Done():
			return reported, ctx.Err()
		case <-ticker.C:
			if err := a.report(ctx, conn); err != nil {
				return reported, err
			}
			reported++
		}
	}
}

// report sends one collected report and waits for the ack. An ack that
// never arrives means the session is wedged; the caller re-dials.
func (a *Agent) report(ctx context.Context, conn *websocket.Conn) error {
	rep := a.collector.Collect(a.cfg.AgentID)
	rep.Timestamp = a.now().UTC()

	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, body)
	cancel()
	if err != nil {
		return err
	}

	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	_, data, err := conn.Read(ackCtx)
	cancel()
	if err != nil {
		return err
	}

	var ack models.Ack
	if err := json.Unmarshal(data, &ack); err == nil && ack.Status != "ok" {
		a.logger.Warn("server rejected report", zap.String("status", ack.Status))
	}
	return nil
}
