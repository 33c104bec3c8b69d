package cli

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/protocol/probe"
	"github.com/cespare/xxhash/v2"
)

// Loopback is a probe transport that answers locally through a Pump, after
// a fixed latency. A deterministic share of attempts times out instead.
type Loopback struct {
	ctx     context.Context
	pump    *weft.Pump
	latency time.Duration
	loss    uint64

	wg sync.WaitGroup
}

// NewLoopback creates a transport feeding pump. lossPercent is clamped to [0, 100].
func NewLoopback(ctx context.Context, pump *weft.Pump, latency time.Duration, lossPercent int) *Loopback {
	loss := uint64(max(0, min(lossPercent, 100)))
	return &Loopback{ctx: ctx, pump: pump, latency: latency, loss: loss}
}

// Send schedules the answer to a and returns immediately.
func (l *Loopback) Send(_ context.Context, a probe.Attempt) error {
	var msg domain.Message = probe.NewReply(a.Chain.ID, a.Target, "pong")
	if l.drops(a) {
		msg = probe.NewTimeout(a.Chain.ID, a.Target)
	}

	l.wg.Add(1)
	deliver := func() {
		defer l.wg.Done()
		// Closed pumps and cancelled runs swallow late answers.
		_ = l.pump.Submit(l.ctx, msg)
	}
	if l.latency <= 0 {
		go deliver()
	} else {
		time.AfterFunc(l.latency, deliver)
	}
	return nil
}

// Wait blocks until every scheduled answer was submitted or discarded.
func (l *Loopback) Wait() {
	l.wg.Wait()
}

func (l *Loopback) drops(a probe.Attempt) bool {
	if l.loss == 0 {
		return false
	}
	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[:8], a.Chain.ID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(a.Attempt))
	if a.Chain.External {
		buf[16] = 1
	}
	return xxhash.Sum64(buf[:])%100 < l.loss
}
