package netflow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// TopicSamplesFlushed carries a []models.TrafficSample payload after each
// window flush.
const TopicSamplesFlushed = "netflow.samples.flushed"

// DeviceResolver maps a current IP to a device id; "" means unmanaged.
type DeviceResolver interface {
	DeviceIDByIP(ctx context.Context, ip string) (string, error)
}

// Collector is the NetFlow v5 UDP receive loop.
type Collector struct {
	addr     string
	resolver DeviceResolver
	store    *Store
	bus      plugin.EventBus
	counters *Counters
	logger   *zap.Logger

	agg *Aggregator
}

// NewCollector creates a collector listening on addr (host:port).
func NewCollector(addr string, resolver DeviceResolver, store *Store, bus plugin.EventBus, counters *Counters, logger *zap.Logger) *Collector {
	return &Collector{
		addr:     addr,
		resolver: resolver,
		store:    store,
		bus:      bus,
		counters: counters,
		logger:   logger,
		agg:      NewAggregator(),
	}
}

// Run binds the socket and receives packets until the context is cancelled.
// A bind failure is fatal to the collector task only; the error is returned
// for the caller to log.
func (c *Collector) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", c.addr, err)
	}
	defer conn.Close()

	c.logger.Info("netflow collector listening", zap.String("addr", c.addr))

	buf := make([]byte, 65535)
	for {
		if ctx.Err() != nil {
			c.flush(context.Background()) // final flush on shutdown
			c.logger.Info("netflow collector stopped")
			return nil
		}

		// Short read deadline so the collector can flush even when idle.
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				c.maybeFlush(ctx)
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.logger.Warn("netflow read error", zap.Error(err))
			continue
		}

		c.counters.addPacket()
		c.handlePacket(ctx, buf[:n])
		c.maybeFlush(ctx)
	}
}

func (c *Collector) handlePacket(ctx context.Context, data []byte) {
	h, records, err := Parse(data)
	if err != nil {
		c.counters.addParseError()
		c.logger.Debug("dropped unparseable packet", zap.Error(err))
		return
	}
	c.counters.addFlows(uint64(h.Count))

	for i := range records {
		rec := &records[i]

		if id, err := c.resolver.DeviceIDByIP(ctx, rec.SrcIP()); err == nil && id != "" {
			c.agg.AddTx(id, uint64(rec.Octets))
		}
		if id, err := c.resolver.DeviceIDByIP(ctx, rec.DstIP()); err == nil && id != "" {
			c.agg.AddRx(id, uint64(rec.Octets))
		}
	}
}

func (c *Collector) maybeFlush(ctx context.Context) {
	if c.agg.Due(time.Now()) {
		c.flush(ctx)
	}
}

func (c *Collector) flush(ctx context.Context) {
	samples := c.agg.Flush(time.Now())
	if len(samples) == 0 {
		return
	}
	if err := c.store.InsertSamples(ctx, samples); err != nil {
		c.logger.Error("failed to write traffic samples", zap.Error(err))
		return
	}
	c.logger.Debug("flushed traffic samples", zap.Int("devices", len(samples)))

	if c.bus != nil {
		c.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicSamplesFlushed,
			Source:    "netflow",
			Timestamp: time.Now(),
			Payload:   samples,
		})
	}
}
