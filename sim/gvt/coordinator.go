// Package gvt drives a parallel run: it registers logical processes,
// relays their messages between rings, computes Global Virtual Time and
// stops the run once GVT reaches the terminal time.
package gvt

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aika-sim/aika/sim"
	"github.com/aika-sim/aika/sim/comms"
	"github.com/aika-sim/aika/sim/lp"
	"github.com/aika-sim/aika/sim/trace"
	"github.com/sirupsen/logrus"
)

// RunState is the lifecycle of a Coordinator.
type RunState int32

const (
	Initializing RunState = iota
	Running
	Terminated
)

func (s RunState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("RunState(%d)", int32(s))
}

const (
	spinBudget = 64
	idleSleep  = 20 * time.Microsecond
)

// Result is returned by a successful Run.
type Result struct {
	GVT     sim.Time
	Metrics *sim.Metrics
	Trace   *trace.SimulationTrace
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithRecorder hands every committed snapshot to r.
func WithRecorder(r sim.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithTrace enables run tracing at the given level.
func WithTrace(cfg trace.TraceConfig) Option {
	return func(c *Coordinator) { c.traceCfg = cfg }
}

// slot is one entry of the LP arena. The atomics are shared with the LP
// goroutine; everything else belongs to the coordinator.
type slot struct {
	logic    sim.LogicalProcess
	timestep sim.Time
	logSlots int

	proc  *lp.Process
	local atomic.Uint64
	// consumed is written by the LP, relayed by the coordinator.
	consumed, relayed atomic.Uint64

	acked    uint64             // consumed count already trimmed from shadow
	shadow   []sim.Time         // timestamps delivered to this LP, oldest first
	overflow []sim.Transferable // waiting for room in this LP's inbox
	err      error
}

// Coordinator owns the LP arena and the router.
type Coordinator struct {
	cfg      sim.Config
	recorder sim.Recorder
	traceCfg trace.TraceConfig

	slots []*slot
	pairs []comms.Pair
	comms *comms.Comms

	gvt    atomic.Uint64
	stop   atomic.Bool
	failed atomic.Bool
	state  atomic.Int32

	ticks      uint64
	relayed    uint64
	overflowed uint64
	trace      *trace.SimulationTrace
}

// NewCoordinator creates a coordinator with cfg.LPs vacant slots.
// Panics if cfg.LPs or cfg.BufferSize is not positive.
func NewCoordinator(cfg sim.Config, opts ...Option) *Coordinator {
	if cfg.LPs < 1 {
		panic("gvt: LPs must be >0")
	}
	if cfg.BufferSize < 1 {
		panic("gvt: BufferSize must be >0")
	}
	if cfg.CalendarSlots < 1 {
		cfg.CalendarSlots = sim.DefaultConfig().CalendarSlots
	}
	c := &Coordinator{
		cfg:      cfg,
		recorder: sim.DiscardRecorder{},
		slots:    make([]*slot, cfg.LPs),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.trace = trace.NewSimulationTrace(c.traceCfg)
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() RunState { return RunState(c.state.Load()) }

// GVT returns the last computed Global Virtual Time.
func (c *Coordinator) GVT() sim.Time { return c.gvt.Load() }

// SpawnProcess registers p in the first vacant slot and returns its ID.
// A zero timestep defaults to 1. Returns sim.ErrLPsFull when every slot
// is taken and sim.ErrRegistrationClosed after InitComms.
func (c *Coordinator) SpawnProcess(p sim.LogicalProcess, timestep sim.Time, logSlots int) (sim.LPID, error) {
	if c.State() != Initializing || c.comms != nil {
		return 0, fmt.Errorf("%w: comms already initialized", sim.ErrRegistrationClosed)
	}
	if logSlots < 1 {
		return 0, fmt.Errorf("%w: got %d", sim.ErrInvalidLogSlots, logSlots)
	}
	if timestep == 0 {
		timestep = 1
	}
	for i, s := range c.slots {
		if s != nil {
			continue
		}
		c.slots[i] = &slot{logic: p, timestep: timestep, logSlots: logSlots}
		return sim.LPID(i), nil
	}
	return 0, fmt.Errorf("%w: %d slots", sim.ErrLPsFull, len(c.slots))
}

// InitComms allocates every LP's ring pair, assembles the router and
// builds the LP runtimes. Returns sim.ErrMismatchLPsCount unless every
// slot was registered.
func (c *Coordinator) InitComms() error {
	n := 0
	for _, s := range c.slots {
		if s != nil {
			n++
		}
	}
	if n != len(c.slots) {
		return fmt.Errorf("%w: %d registered, %d configured", sim.ErrMismatchLPsCount, n, len(c.slots))
	}
	c.pairs = make([]comms.Pair, len(c.slots))
	for i := range c.pairs {
		c.pairs[i] = comms.NewPair(c.cfg.BufferSize)
	}
	c.comms = comms.New(c.pairs)
	for i, s := range c.slots {
		s.proc = lp.New(sim.LPID(i), s.logic, lp.Options{
			LPs:           len(c.slots),
			Timestep:      s.timestep,
			LogSlots:      s.logSlots,
			CalendarSlots: c.cfg.CalendarSlots,
			Terminal:      sim.MaxTime,
			Recorder:      c.recorder,
			Trace:         c.traceCfg,
		}, lp.Links{
			Outbox:    c.pairs[i].Outbox,
			Inbox:     c.pairs[i].Inbox,
			LocalTime: &s.local,
			Consumed:  &s.consumed,
			Relayed:   &s.relayed,
			GVT:       &c.gvt,
			Stop:      &c.stop,
		})
	}
	logrus.Debugf("[gvt %07d] comms ready: %d lps, %d slots per ring", 0, len(c.slots), c.cfg.BufferSize)
	return nil
}

// Run executes the simulation until GVT reaches terminal. Each LP runs
// on its own OS thread; the calling goroutine becomes the coordinator.
func (c *Coordinator) Run(terminal sim.Time) (*Result, error) {
	if c.comms == nil {
		return nil, sim.ErrNotInitialized
	}
	if !c.state.CompareAndSwap(int32(Initializing), int32(Running)) {
		return nil, fmt.Errorf("coordinator is %v", c.State())
	}
	defer c.state.Store(int32(Terminated))

	start := time.Now()
	for _, s := range c.slots {
		s.proc.SetTerminal(terminal)
	}
	logrus.Infof("[gvt %07d] starting %d lps, terminal=%d", 0, len(c.slots), terminal)

	var wg sync.WaitGroup
	for _, s := range c.slots {
		wg.Add(1)
		go c.runProcess(&wg, s)
	}

	runErr := c.loop(terminal)
	c.stop.Store(true)
	wg.Wait()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, s := range c.slots {
		if s.err != nil {
			errs = append(errs, s.err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logrus.Errorf("[gvt %07d] run failed: %v", c.ticks, err)
		return nil, err
	}

	metrics := &sim.Metrics{
		GVT:        c.GVT(),
		Terminal:   terminal,
		Ticks:      c.ticks,
		Relayed:    c.relayed,
		Overflowed: c.overflowed,
		PerLP:      make([]sim.LPStats, 0, len(c.slots)),
		WallTime:   time.Since(start),
	}
	for _, s := range c.slots {
		metrics.PerLP = append(metrics.PerLP, s.proc.Stats())
		c.trace.Merge(s.proc.Trace())
	}
	logrus.Infof("[gvt %07d] terminated at gvt=%d after %v", c.ticks, metrics.GVT, metrics.WallTime)
	return &Result{GVT: metrics.GVT, Metrics: metrics, Trace: c.trace}, nil
}

// runProcess is the body of one LP goroutine.
func (c *Coordinator) runProcess(wg *sync.WaitGroup, s *slot) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.err = &sim.LPError{LP: s.proc.ID(), Err: fmt.Errorf("%w: %v", sim.ErrThreadJoin, r)}
			c.failed.Store(true)
		}
	}()
	if err := s.proc.Run(); err != nil {
		s.err = err
		c.failed.Store(true)
	}
}

func (c *Coordinator) loop(terminal sim.Time) error {
	idle := 0
	for {
		if c.failed.Load() {
			return nil
		}
		before := c.GVT()
		moved, err := c.tick()
		if err != nil {
			return err
		}
		if c.GVT() >= terminal {
			return nil
		}
		if moved > 0 || c.GVT() != before {
			idle = 0
			continue
		}
		if idle++; idle < spinBudget {
			runtime.Gosched()
			continue
		}
		idle = 0
		time.Sleep(idleSleep)
	}
}

// tick runs one coordinator round and returns how many transferables it
// moved.
func (c *Coordinator) tick() (int, error) {
	c.ticks++
	moved, err := c.drainOverflow()
	if err != nil {
		return moved, err
	}
	staged, err := c.comms.Poll()
	if err != nil {
		return moved, err
	}
	for i, ok := range staged {
		if !ok {
			continue
		}
		for n := 0; n < c.comms.Capacity(); n++ {
			t, err := c.comms.Read(i)
			if errors.Is(err, comms.ErrEmpty) {
				break
			}
			if err != nil {
				return moved, err
			}
			if err := c.route(t); err != nil {
				return moved, err
			}
			// Only after t is tracked by the coordinator may the sender
			// forget it.
			c.slots[i].relayed.Add(1)
			c.relayed++
			moved++
		}
	}
	c.advance()
	return moved, nil
}

// drainOverflow retries every destination's backlog in FIFO order,
// stopping at the first rejection.
func (c *Coordinator) drainOverflow() (int, error) {
	moved := 0
	for _, s := range c.slots {
		for len(s.overflow) > 0 {
			err := c.comms.Write(s.overflow[0])
			if errors.Is(err, comms.ErrFull) {
				break
			}
			if err != nil {
				return moved, err
			}
			s.shadow = append(s.shadow, s.overflow[0].Timestamp())
			s.overflow[0] = sim.Transferable{}
			s.overflow = s.overflow[1:]
			moved++
		}
	}
	return moved, nil
}

// route delivers t, or queues it behind the destination's backlog.
func (c *Coordinator) route(t sim.Transferable) error {
	dest := int(t.To())
	if dest < 0 || dest >= len(c.slots) {
		return fmt.Errorf("relay from lp %d: %w: %d", t.From(), comms.ErrUnknownDestination, dest)
	}
	s := c.slots[dest]
	if len(s.overflow) == 0 {
		err := c.comms.Write(t)
		if err == nil {
			s.shadow = append(s.shadow, t.Timestamp())
			return nil
		}
		if !errors.Is(err, comms.ErrFull) {
			return err
		}
	}
	s.overflow = append(s.overflow, t)
	c.overflowed++
	return nil
}

// computeGVT returns the minimum over every LP's published local time and
// every transferable the coordinator holds or has delivered but the LP
// has not consumed yet. Consumed is read before LocalTime: the LP
// publishes its local time before it acknowledges consumption.
func (c *Coordinator) computeGVT() (sim.Time, int) {
	g := sim.MaxTime
	backlog := 0
	for _, s := range c.slots {
		consumed := s.consumed.Load()
		for s.acked < consumed && len(s.shadow) > 0 {
			s.shadow = s.shadow[1:]
			s.acked++
		}
		if lt := s.local.Load(); lt < g {
			g = lt
		}
		for _, ts := range s.shadow {
			if ts < g {
				g = ts
			}
		}
		for _, t := range s.overflow {
			if t.Timestamp() < g {
				g = t.Timestamp()
			}
		}
		backlog += len(s.overflow)
	}
	return g, backlog
}

// advance publishes a new GVT if it moved forward. GVT never decreases.
func (c *Coordinator) advance() {
	g, backlog := c.computeGVT()
	cur := c.gvt.Load()
	if g <= cur {
		return
	}
	c.gvt.Store(g)
	c.trace.RecordGVT(trace.GVTRecord{Tick: c.ticks, GVT: g, Backlog: backlog})
	logrus.Debugf("[gvt %07d] gvt %d -> %d (backlog %d)", c.ticks, cur, g, backlog)
}
