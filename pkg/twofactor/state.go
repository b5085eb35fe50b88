package twofactor

import "slices"

// State is the lifecycle state of a user's second factor.
type State string

const (
	StateNotConfigured State = "not_configured"
	StateEnabled       State = "enabled"
	StateRotated       State = "enabled_rotated" // Enabled, secret replaced after enrollment
	StateDisabled      State = "disabled"
)

// Active reports whether codes are accepted in this state.
func (s State) Active() bool {
	return s == StateEnabled || s == StateRotated
}

type event string

const (
	eventDisable event = "disable"
	eventRotate  event = "rotate"
	eventRegen   event = "regenerate_backup_codes"
	eventConsume event = "consume_backup_code"
)

// transitions lists, per event, the states it may fire from.
// Enable is accepted from every state and is not listed.
var transitions = map[event][]State{
	eventDisable: {StateEnabled, StateRotated, StateDisabled},
	eventRotate:  {StateEnabled, StateRotated},
	eventRegen:   {StateEnabled, StateRotated},
	eventConsume: {StateEnabled, StateRotated},
}

func canFire(from State, ev event) bool {
	return slices.Contains(transitions[ev], from)
}

func stateOf(cred *Credential) State {
	switch {
	case cred == nil:
		return StateNotConfigured
	case !cred.Enabled:
		return StateDisabled
	case !cred.RotatedAt.IsZero():
		return StateRotated
	default:
		return StateEnabled
	}
}
