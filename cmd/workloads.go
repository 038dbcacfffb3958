package cmd

import (
	"fmt"
	"math"

	"github.com/sugawarayuuta/sonnet"

	"github.com/aika-sim/aika/sim"
)

// relayMaxHops bounds how often a token is forwarded.
const relayMaxHops = 8

// relayState is the state of one relay LP.
type relayState struct {
	Sent      uint64 `json:"sent"`
	Received  uint64 `json:"received"`
	Forwarded uint64 `json:"forwarded"`
	Hops      uint64 `json:"hops"`
}

type relayToken struct {
	Origin sim.LPID `json:"origin"`
	Hops   int      `json:"hops"`
}

// relayLP passes tokens between LPs. Each step sends a fresh token to a
// random peer; a received token is forwarded to the next LP until it has
// made relayMaxHops hops.
type relayLP struct {
	key sim.SimulationKey
	n   int
}

func (r *relayLP) Step(now sim.Time, state *sim.State) sim.Event {
	st := decodeState[relayState](state)
	rng := sim.StepRNG(r.key, state.Self(), now)
	if r.n > 1 {
		dest := sim.LPID(rng.Intn(r.n - 1))
		if dest >= state.Self() {
			dest++
		}
		state.Send(dest, now+1+sim.Time(rng.Intn(4)), encode(relayToken{Origin: state.Self()}))
		st.Sent++
	}
	state.Update(encode(st))
	return sim.NewEvent(now, state.Self(), sim.Timeout(1+sim.Time(rng.Intn(3))))
}

func (r *relayLP) ProcessMessage(msg sim.Message, now sim.Time, state *sim.State) sim.HandlerOutput {
	st := decodeState[relayState](state)
	var tok relayToken
	if err := sonnet.Unmarshal(msg.Payload, &tok); err != nil {
		panic(fmt.Sprintf("relay: bad token from lp %d: %v", msg.Sender, err))
	}
	st.Received++
	st.Hops += uint64(tok.Hops)
	if tok.Hops < relayMaxHops {
		tok.Hops++
		state.Send(sim.LPID((int(state.Self())+1)%r.n), now+1, encode(tok))
		st.Forwarded++
	}
	state.Update(encode(st))
	return sim.Nan()
}

// gbmState is the state of one random-walk LP.
type gbmState struct {
	Value float64 `json:"value"`
	Steps uint64  `json:"steps"`
}

// gbmLP follows a geometric Brownian motion, one step per tick.
type gbmLP struct {
	key        sim.SimulationKey
	drift      float64
	volatility float64
	dt         float64
	initial    float64
}

func (g *gbmLP) Step(now sim.Time, state *sim.State) sim.Event {
	st := decodeState[gbmState](state)
	if st.Steps == 0 {
		st.Value = g.initial
	}
	z := sim.StepRNG(g.key, state.Self(), now).NormFloat64()
	exponent := (g.drift-0.5*g.volatility*g.volatility)*g.dt + g.volatility*math.Sqrt(g.dt)*z
	st.Value *= math.Exp(exponent)
	st.Steps++
	state.Update(encode(st))
	return sim.NewEvent(now, state.Self(), sim.Timeout(1))
}

func (g *gbmLP) ProcessMessage(sim.Message, sim.Time, *sim.State) sim.HandlerOutput {
	return sim.Nan()
}

// newWorkload builds the LP for slot i of the named workload.
func newWorkload(name string, key sim.SimulationKey, n int) (func(i int) sim.LogicalProcess, error) {
	switch name {
	case "", "relay":
		return func(int) sim.LogicalProcess { return &relayLP{key: key, n: n} }, nil
	case "gbm":
		return func(int) sim.LogicalProcess {
			return &gbmLP{key: key, drift: 0.1, volatility: 0.2, dt: 1.0 / 252, initial: 100}
		}, nil
	}
	return nil, fmt.Errorf("unknown workload %q", name)
}

func decodeState[T any](state *sim.State) T {
	var v T
	if len(state.Bytes()) == 0 {
		return v
	}
	if err := sonnet.Unmarshal(state.Bytes(), &v); err != nil {
		panic(fmt.Sprintf("lp %d: corrupt state: %v", state.Self(), err))
	}
	return v
}

func encode(v any) []byte {
	b, err := sonnet.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode %T: %v", v, err))
	}
	return b
}
