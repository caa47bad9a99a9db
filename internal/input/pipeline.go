package input

import (
	"fmt"
	"sync"

	"github.com/bloopgames/rollback/internal/corestate"
)

// Deriver derives press/release transitions by diffing the held-key state
// against the previous frame it saw for that player slot. Folding event
// batches into a corestate.InputView is done by the package function Apply.
type Deriver struct {
	mu   sync.Mutex
	prev map[uint8][]byte
}

// NewDeriver constructs an empty Deriver.
func NewDeriver() *Deriver {
	return &Deriver{prev: make(map[uint8][]byte)}
}

// Apply mutates view to reflect every event in the batch, in order. Events
// for a different frame than the ones surrounding them are still applied;
// frame-ordering is the Gate's responsibility, not the Deriver's.
func Apply(view *corestate.InputView, playerIndex int, events []Event) error {
	for _, e := range events {
		switch e.Kind {
		case KeyDown:
			if err := view.SetKey(playerIndex, e.Key, true); err != nil {
				return err
			}
		case KeyUp:
			if err := view.SetKey(playerIndex, e.Key, false); err != nil {
				return err
			}
		case MouseMove:
			if err := view.SetMousePosition(playerIndex, e.X, e.Y); err != nil {
				return err
			}
		case MouseWheel:
			if err := view.SetMouseWheel(playerIndex, e.WheelX, e.WheelY); err != nil {
				return err
			}
		case MouseDown:
			if err := view.SetMouseButton(playerIndex, e.MouseButton, true); err != nil {
				return err
			}
		case MouseUp:
			if err := view.SetMouseButton(playerIndex, e.MouseButton, false); err != nil {
				return err
			}
		default:
			return fmt.Errorf("input: cannot apply unknown event kind %d", e.Kind)
		}
	}
	return nil
}

// Transitions reports which keys became held or released for playerIndex
// since the last call for that player, by diffing the current view against
// a cached copy of the previous frame's key bytes.
func (d *Deriver) Transitions(view *corestate.InputView, playerIndex int) (pressed, released []corestate.KeyCode, err error) {
	current := make([]byte, corestate.MaxKeyCode)
	for code := corestate.KeyCode(0); int(code) < int(corestate.MaxKeyCode); code++ {
		held, kerr := view.Key(playerIndex, code)
		if kerr != nil {
			return nil, nil, kerr
		}
		if held {
			current[code] = 1
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	previous := d.prev[uint8(playerIndex)]
	for code := range current {
		wasHeld := byte(0)
		if previous != nil {
			wasHeld = previous[code]
		}
		switch {
		case current[code] == 1 && wasHeld == 0:
			pressed = append(pressed, corestate.KeyCode(code))
		case current[code] == 0 && wasHeld == 1:
			released = append(released, corestate.KeyCode(code))
		}
	}
	d.prev[uint8(playerIndex)] = current
	return pressed, released, nil
}

// Forget drops the cached transition state for a player, used when a peer
// disconnects so a rejoin starts from a clean baseline.
func (d *Deriver) Forget(playerIndex int) {
	d.mu.Lock()
	delete(d.prev, uint8(playerIndex))
	d.mu.Unlock()
}
