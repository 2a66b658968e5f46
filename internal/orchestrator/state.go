package orchestrator

import (
	"sync"
	"time"
)

// State is a channel's position in the reply pipeline.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateContextBuilding
	StateCalling
	StateFallback
	StatePosting
	StateCooldown
)

var stateNames = [...]string{"idle", "collecting", "context_building", "calling", "fallback", "posting", "cooldown"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// allowed lists the legal transitions.
var allowed = map[State][]State{
	StateIdle:            {StateCollecting},
	StateCollecting:      {StateContextBuilding, StatePosting, StateIdle},
	StateContextBuilding: {StateCalling, StatePosting},
	StateCalling:         {StateFallback, StatePosting},
	StateFallback:        {StateCalling, StatePosting},
	StatePosting:         {StateCooldown},
	StateCooldown:        {StateIdle, StateCollecting},
}

// channelState tracks one channel. mu serializes reply emission; the other
// fields are guarded by fmu.
type channelState struct {
	mu sync.Mutex

	fmu         sync.Mutex
	state       State
	lastBot     time.Time
	lastMessage time.Time
	history     []State
}

// to moves to next when the transition is legal and reports whether it did.
func (c *channelState) to(next State) bool {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	for _, s := range allowed[c.state] {
		if s == next {
			c.state = next
			c.history = append(c.history, next)
			if len(c.history) > 32 {
				c.history = c.history[len(c.history)-32:]
			}
			return true
		}
	}
	return false
}

// current settles Cooldown into Idle once the reply cooldown has passed.
func (c *channelState) current(now time.Time) State {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	if c.state == StateCooldown && now.Sub(c.lastBot) >= UserCooldown {
		c.state = StateIdle
		c.history = append(c.history, StateIdle)
	}
	return c.state
}

// begin enters Collecting from Idle or Cooldown.
func (c *channelState) begin(now time.Time) {
	c.current(now)
	c.to(StateCollecting)
}

// seen records an inbound message and returns the previous one's time and
// the last bot turn.
func (c *channelState) seen(at time.Time) (prev, lastBot time.Time) {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	prev, lastBot = c.lastMessage, c.lastBot
	if at.After(c.lastMessage) {
		c.lastMessage = at
	}
	return prev, lastBot
}

// abort drops back to Idle from anywhere.
func (c *channelState) abort() {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	c.state = StateIdle
	c.history = append(c.history, StateIdle)
}

func (c *channelState) posted(at time.Time) {
	c.fmu.Lock()
	c.lastBot = at
	c.fmu.Unlock()
	c.to(StateCooldown)
}

func (c *channelState) lastBotAt() time.Time {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	return c.lastBot
}

// transitions returns the recent state history.
func (c *channelState) transitions() []State {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	return append([]State(nil), c.history...)
}
