package corestate

import "fmt"

// MouseButtons reports the held state of the three standard mouse buttons.
type MouseButtons struct {
	Left   bool
	Middle bool
	Right  bool
}

// InputView accesses the InputCtx block, which holds one PlayerInput slot
// per tracked peer.
type InputView struct{ detachable }

// NewInputView binds an InputView to region's current generation.
func NewInputView(region *Region) *InputView {
	v := &InputView{}
	v.bind(region)
	return v
}

func playerOffset(playerIndex int) (int, error) {
	if playerIndex < 0 || playerIndex >= MaxPlayers {
		return 0, fmt.Errorf("corestate: player index %d out of range [0,%d)", playerIndex, MaxPlayers)
	}
	return OffsetInput + playerIndex*PlayerInputBytes, nil
}

func (v *InputView) playerSlice(playerIndex int) ([]byte, error) {
	off, err := playerOffset(playerIndex)
	if err != nil {
		return nil, err
	}
	return v.region.Context()[off : off+PlayerInputBytes], nil
}

// Key reports whether the given key is currently held for playerIndex.
func (v *InputView) Key(playerIndex int, code KeyCode) (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return false, err
	}
	if int(code) >= keyRegionBytes {
		return false, fmt.Errorf("corestate: key code %d out of range [0,%d)", code, keyRegionBytes)
	}
	return s[playerKeysOffset+int(code)] != 0, nil
}

// SetKey stores the held state of a key for playerIndex.
func (v *InputView) SetKey(playerIndex int, code KeyCode, held bool) error {
	if !v.live() {
		return ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return err
	}
	if int(code) >= keyRegionBytes {
		return fmt.Errorf("corestate: key code %d out of range [0,%d)", code, keyRegionBytes)
	}
	s[playerKeysOffset+int(code)] = boolByte(held)
	return nil
}

// Mouse returns the pointer position, wheel delta and button state for
// playerIndex.
func (v *InputView) Mouse(playerIndex int) (x, y, wheelX, wheelY float32, buttons MouseButtons, err error) {
	if !v.live() {
		return 0, 0, 0, 0, MouseButtons{}, ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return 0, 0, 0, 0, MouseButtons{}, err
	}
	m := s[playerMouseOffset:]
	x = decodeFloat32(m[mouseXOffset:])
	y = decodeFloat32(m[mouseYOffset:])
	wheelX = decodeFloat32(m[mouseWheelXOffset:])
	wheelY = decodeFloat32(m[mouseWheelYOffset:])
	buttons = MouseButtons{
		Left:   m[mouseLeftOffset] != 0,
		Middle: m[mouseMiddleOffset] != 0,
		Right:  m[mouseRightOffset] != 0,
	}
	return x, y, wheelX, wheelY, buttons, nil
}

// SetMousePosition stores the pointer position for playerIndex.
func (v *InputView) SetMousePosition(playerIndex int, x, y float32) error {
	if !v.live() {
		return ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return err
	}
	m := s[playerMouseOffset:]
	encodeFloat32(m[mouseXOffset:], x)
	encodeFloat32(m[mouseYOffset:], y)
	return nil
}

// SetMouseWheel stores the wheel delta for playerIndex.
func (v *InputView) SetMouseWheel(playerIndex int, wheelX, wheelY float32) error {
	if !v.live() {
		return ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return err
	}
	m := s[playerMouseOffset:]
	encodeFloat32(m[mouseWheelXOffset:], wheelX)
	encodeFloat32(m[mouseWheelYOffset:], wheelY)
	return nil
}

// SetMouseButton stores a single mouse button's held state for playerIndex.
func (v *InputView) SetMouseButton(playerIndex int, button MouseButton, held bool) error {
	if !v.live() {
		return ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return err
	}
	m := s[playerMouseOffset:]
	switch button {
	case MouseButtonLeft:
		m[mouseLeftOffset] = boolByte(held)
	case MouseButtonMiddle:
		m[mouseMiddleOffset] = boolByte(held)
	case MouseButtonRight:
		m[mouseRightOffset] = boolByte(held)
	default:
		return fmt.Errorf("corestate: unknown mouse button %d", button)
	}
	return nil
}

// MouseButton identifies one of the three standard mouse buttons.
type MouseButton uint8

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonMiddle
	MouseButtonRight
)

// ClearPlayer zeroes the entire PlayerInput slot, used when a peer
// disconnects or a frame starts with no carried-over input.
func (v *InputView) ClearPlayer(playerIndex int) error {
	if !v.live() {
		return ErrDetached
	}
	s, err := v.playerSlice(playerIndex)
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = 0
	}
	return nil
}
