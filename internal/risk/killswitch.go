package risk

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// SwitchState represents the kill switch state
type SwitchState string

const (
	StateArmed     SwitchState = "armed"     // Normal operation
	StateTriggered SwitchState = "triggered" // Trading halted until manual reset
)

// KillSwitch halts trading after a run of consecutive losing trades. An
// optional cumulative-loss floor makes the trigger two-conditional: the
// streak threshold AND total P&L below the floor must both hold.
//
// Once triggered the switch stays triggered until an explicit Reset; there is
// no automatic recovery.
type KillSwitch struct {
	threshold int
	pnlFloor  float64 // 0 disables the floor condition

	state             SwitchState
	consecutiveLosses int
	totalPnL          float64
	wins              int
	losses            int
	reason            string
	triggeredAt       time.Time

	onTrip         func(reason string)
	onReset        func()
	onStreakBroken func(losses int)

	mu sync.RWMutex
}

// SwitchStatus is a point-in-time snapshot of the kill switch. All fields are
// always populated; zero values mean "not applicable", never "absent".
type SwitchStatus struct {
	State             SwitchState `json:"state"`
	Triggered         bool        `json:"triggered"`
	ConsecutiveLosses int         `json:"consecutive_losses"`
	Threshold         int         `json:"threshold"`
	PnLFloor          float64     `json:"pnl_floor"`
	TotalPnL          float64     `json:"total_pnl"`
	Wins              int         `json:"wins"`
	Losses            int         `json:"losses"`
	Reason            string      `json:"reason"`
}

// NewKillSwitch creates a kill switch that triggers on the loss streak alone.
func NewKillSwitch(threshold int) *KillSwitch {
	return &KillSwitch{
		threshold: threshold,
		state:     StateArmed,
	}
}

// NewKillSwitchWithFloor creates a kill switch that triggers only when the
// loss streak reaches threshold AND cumulative P&L sits below floor (a
// negative dollar amount).
func NewKillSwitchWithFloor(threshold int, floor float64) *KillSwitch {
	ks := NewKillSwitch(threshold)
	ks.pnlFloor = floor
	return ks
}

// OnTrip sets the callback invoked when the switch triggers.
func (ks *KillSwitch) OnTrip(handler func(reason string)) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.onTrip = handler
}

// OnReset sets the callback invoked on a manual reset of a triggered switch.
func (ks *KillSwitch) OnReset(handler func()) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.onReset = handler
}

// OnStreakBroken sets the callback invoked when a winning trade ends a
// nonzero loss streak.
func (ks *KillSwitch) OnStreakBroken(handler func(losses int)) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.onStreakBroken = handler
}

// RecordTrade accounts one closed trade. Losing trades extend the streak and
// may trigger the switch; winning or break-even trades reset the streak.
func (ks *KillSwitch) RecordTrade(pnl float64) {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return
	}

	ks.mu.Lock()

	ks.totalPnL += pnl

	var brokenStreak int
	var tripped bool
	var reason string

	if pnl < 0 {
		ks.losses++
		ks.consecutiveLosses++

		if ks.state == StateArmed && ks.consecutiveLosses >= ks.threshold &&
			(ks.pnlFloor == 0 || ks.totalPnL < ks.pnlFloor) {
			ks.state = StateTriggered
			ks.triggeredAt = time.Now()
			if ks.pnlFloor != 0 {
				ks.reason = fmt.Sprintf("%d consecutive losses with total P&L %.2f below floor %.2f",
					ks.consecutiveLosses, ks.totalPnL, ks.pnlFloor)
			} else {
				ks.reason = fmt.Sprintf("%d consecutive losses reached threshold %d",
					ks.consecutiveLosses, ks.threshold)
			}
			tripped = true
			reason = ks.reason
		}
	} else {
		ks.wins++
		if ks.consecutiveLosses > 0 {
			brokenStreak = ks.consecutiveLosses
		}
		ks.consecutiveLosses = 0
	}

	onTrip := ks.onTrip
	onStreakBroken := ks.onStreakBroken
	ks.mu.Unlock()

	if brokenStreak > 0 && onStreakBroken != nil {
		onStreakBroken(brokenStreak)
	}
	if tripped && onTrip != nil {
		onTrip(reason)
	}
}

// Triggered reports whether trading is halted.
func (ks *KillSwitch) Triggered() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.state == StateTriggered
}

// Reason returns the halt reason, empty while armed.
func (ks *KillSwitch) Reason() string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.reason
}

// Reset re-arms the switch and clears the loss streak. Resetting an armed
// switch with no streak is a no-op; Reset may be called at any time.
func (ks *KillSwitch) Reset() {
	ks.mu.Lock()

	wasTriggered := ks.state == StateTriggered
	if !wasTriggered && ks.consecutiveLosses == 0 {
		ks.mu.Unlock()
		return
	}

	ks.state = StateArmed
	ks.consecutiveLosses = 0
	ks.reason = ""

	onReset := ks.onReset
	ks.mu.Unlock()

	if wasTriggered && onReset != nil {
		onReset()
	}
}

// Status returns a full snapshot of the switch.
func (ks *KillSwitch) Status() SwitchStatus {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	return SwitchStatus{
		State:             ks.state,
		Triggered:         ks.state == StateTriggered,
		ConsecutiveLosses: ks.consecutiveLosses,
		Threshold:         ks.threshold,
		PnLFloor:          ks.pnlFloor,
		TotalPnL:          ks.totalPnL,
		Wins:              ks.wins,
		Losses:            ks.losses,
		Reason:            ks.reason,
	}
}
