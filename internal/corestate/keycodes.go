package corestate

// KeyCode indexes a single byte in a PlayerInput's key region. The ordering
// follows the W3C UI Events KeyboardEvent.code table grouped by section;
// values are stable ABI constants and must never be renumbered.
type KeyCode uint16

// Writing system keys.
const (
	KeyBackquote KeyCode = iota
	KeyBackslash
	KeyBracketLeft
	KeyBracketRight
	KeyComma
	KeyDigit0
	KeyDigit1
	KeyDigit2
	KeyDigit3
	KeyDigit4
	KeyDigit5
	KeyDigit6
	KeyDigit7
	KeyDigit8
	KeyDigit9
	KeyEqual
	KeyIntlBackslash
	KeyIntlRo
	KeyIntlYen
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	KeyMinus
	KeyPeriod
	KeyQuote
	KeySemicolon
	KeySlash
)

// Functional keys.
const (
	KeyAltLeft KeyCode = iota + 50
	KeyAltRight
	KeyBackspace
	KeyCapsLock
	KeyContextMenu
	KeyControlLeft
	KeyControlRight
	KeyEnter
	KeyMetaLeft
	KeyMetaRight
	KeyShiftLeft
	KeyShiftRight
	KeySpace
	KeyTab
	KeyConvert
	KeyKanaMode
	KeyLang1
	KeyLang2
	KeyLang3
	KeyLang4
	KeyLang5
	KeyNonConvert
)

// Control pad section.
const (
	KeyDelete KeyCode = iota + 72
	KeyEnd
	KeyHelp
	KeyHome
	KeyInsert
	KeyPageDown
	KeyPageUp
)

// Arrow pad section.
const (
	KeyArrowDown KeyCode = iota + 79
	KeyArrowLeft
	KeyArrowRight
	KeyArrowUp
)

// Numpad section.
const (
	KeyNumLock KeyCode = iota + 83
	KeyNumpad0
	KeyNumpad1
	KeyNumpad2
	KeyNumpad3
	KeyNumpad4
	KeyNumpad5
	KeyNumpad6
	KeyNumpad7
	KeyNumpad8
	KeyNumpad9
	KeyNumpadAdd
	KeyNumpadBackspace
	KeyNumpadClear
	KeyNumpadClearEntry
	KeyNumpadComma
	KeyNumpadDecimal
	KeyNumpadDivide
	KeyNumpadEnter
	KeyNumpadEqual
	KeyNumpadHash
	KeyNumpadMemoryAdd
	KeyNumpadMemoryClear
	KeyNumpadMemoryRecall
	KeyNumpadMemoryStore
	KeyNumpadMemorySubtract
	KeyNumpadMultiply
	KeyNumpadParenLeft
	KeyNumpadParenRight
	KeyNumpadSubtract
)

// Function section.
const (
	KeyEscape KeyCode = iota + 113
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyFn
	KeyFnLock
	KeyPrintScreen
	KeyScrollLock
	KeyPause
)

// Media keys.
const (
	KeyBrowserBack KeyCode = iota + 131
	KeyBrowserFavorites
	KeyBrowserForward
	KeyBrowserHome
	KeyBrowserRefresh
	KeyBrowserSearch
	KeyBrowserStop
	KeyEject
	KeyLaunchApp1
	KeyLaunchApp2
	KeyLaunchMail
	KeyMediaPlayPause
	KeyMediaSelect
	KeyMediaStop
	KeyMediaTrackNext
	KeyMediaTrackPrevious
	KeyPower
	KeySleep
	KeyAudioVolumeDown
	KeyAudioVolumeMute
	KeyAudioVolumeUp
	KeyWakeUp
)

// Legacy and IME keys.
const (
	KeyAgain KeyCode = iota + 153
	KeyCopy
	KeyCut
	KeyFind
	KeyOpen
	KeyPaste
	KeyProps
	KeySelect
	KeyUndo
	KeyHiragana
	KeyKatakana
	KeyUnidentified
)

// MaxKeyCode is one past the highest assigned KeyCode value.
const MaxKeyCode = KeyUnidentified + 1

// keyCodeNames provides a reverse lookup from KeyCode to its W3C code string,
// used by debug tooling; it is sized to keyRegionBytes and left blank past
// MaxKeyCode for any reserved trailing slots.
var keyCodeNames = [keyRegionBytes]string{
	KeyBackquote: "Backquote", KeyBracketLeft: "BracketLeft", KeyBracketRight: "BracketRight",
	KeyBackslash: "Backslash", KeyComma: "Comma",
	KeyDigit0: "Digit0", KeyDigit1: "Digit1", KeyDigit2: "Digit2", KeyDigit3: "Digit3", KeyDigit4: "Digit4",
	KeyDigit5: "Digit5", KeyDigit6: "Digit6", KeyDigit7: "Digit7", KeyDigit8: "Digit8", KeyDigit9: "Digit9",
	KeyEqual: "Equal", KeyIntlBackslash: "IntlBackslash", KeyIntlRo: "IntlRo", KeyIntlYen: "IntlYen",
	KeyA: "KeyA", KeyB: "KeyB", KeyC: "KeyC", KeyD: "KeyD", KeyE: "KeyE", KeyF: "KeyF", KeyG: "KeyG",
	KeyH: "KeyH", KeyI: "KeyI", KeyJ: "KeyJ", KeyK: "KeyK", KeyL: "KeyL", KeyM: "KeyM", KeyN: "KeyN",
	KeyO: "KeyO", KeyP: "KeyP", KeyQ: "KeyQ", KeyR: "KeyR", KeyS: "KeyS", KeyT: "KeyT", KeyU: "KeyU",
	KeyV: "KeyV", KeyW: "KeyW", KeyX: "KeyX", KeyY: "KeyY", KeyZ: "KeyZ",
	KeyMinus: "Minus", KeyPeriod: "Period", KeyQuote: "Quote", KeySemicolon: "Semicolon", KeySlash: "Slash",

	KeyAltLeft: "AltLeft", KeyAltRight: "AltRight", KeyBackspace: "Backspace", KeyCapsLock: "CapsLock",
	KeyContextMenu: "ContextMenu", KeyControlLeft: "ControlLeft", KeyControlRight: "ControlRight",
	KeyEnter: "Enter", KeyMetaLeft: "MetaLeft", KeyMetaRight: "MetaRight", KeyShiftLeft: "ShiftLeft",
	KeyShiftRight: "ShiftRight", KeySpace: "Space", KeyTab: "Tab", KeyConvert: "Convert",
	KeyKanaMode: "KanaMode", KeyLang1: "Lang1", KeyLang2: "Lang2", KeyLang3: "Lang3", KeyLang4: "Lang4",
	KeyLang5: "Lang5", KeyNonConvert: "NonConvert",

	KeyDelete: "Delete", KeyEnd: "End", KeyHelp: "Help", KeyHome: "Home", KeyInsert: "Insert",
	KeyPageDown: "PageDown", KeyPageUp: "PageUp",

	KeyArrowDown: "ArrowDown", KeyArrowLeft: "ArrowLeft", KeyArrowRight: "ArrowRight", KeyArrowUp: "ArrowUp",

	KeyNumLock: "NumLock", KeyNumpad0: "Numpad0", KeyNumpad1: "Numpad1", KeyNumpad2: "Numpad2",
	KeyNumpad3: "Numpad3", KeyNumpad4: "Numpad4", KeyNumpad5: "Numpad5", KeyNumpad6: "Numpad6",
	KeyNumpad7: "Numpad7", KeyNumpad8: "Numpad8", KeyNumpad9: "Numpad9", KeyNumpadAdd: "NumpadAdd",
	KeyNumpadBackspace: "NumpadBackspace", KeyNumpadClear: "NumpadClear", KeyNumpadClearEntry: "NumpadClearEntry",
	KeyNumpadComma: "NumpadComma", KeyNumpadDecimal: "NumpadDecimal", KeyNumpadDivide: "NumpadDivide",
	KeyNumpadEnter: "NumpadEnter", KeyNumpadEqual: "NumpadEqual", KeyNumpadHash: "NumpadHash",
	KeyNumpadMemoryAdd: "NumpadMemoryAdd", KeyNumpadMemoryClear: "NumpadMemoryClear",
	KeyNumpadMemoryRecall: "NumpadMemoryRecall", KeyNumpadMemoryStore: "NumpadMemoryStore",
	KeyNumpadMemorySubtract: "NumpadMemorySubtract", KeyNumpadMultiply: "NumpadMultiply",
	KeyNumpadParenLeft: "NumpadParenLeft", KeyNumpadParenRight: "NumpadParenRight", KeyNumpadSubtract: "NumpadSubtract",

	KeyEscape: "Escape", KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4", KeyF5: "F5", KeyF6: "F6",
	KeyF7: "F7", KeyF8: "F8", KeyF9: "F9", KeyF10: "F10", KeyF11: "F11", KeyF12: "F12", KeyFn: "Fn",
	KeyFnLock: "FnLock", KeyPrintScreen: "PrintScreen", KeyScrollLock: "ScrollLock", KeyPause: "Pause",

	KeyBrowserBack: "BrowserBack", KeyBrowserFavorites: "BrowserFavorites", KeyBrowserForward: "BrowserForward",
	KeyBrowserHome: "BrowserHome", KeyBrowserRefresh: "BrowserRefresh", KeyBrowserSearch: "BrowserSearch",
	KeyBrowserStop: "BrowserStop", KeyEject: "Eject", KeyLaunchApp1: "LaunchApp1", KeyLaunchApp2: "LaunchApp2",
	KeyLaunchMail: "LaunchMail", KeyMediaPlayPause: "MediaPlayPause", KeyMediaSelect: "MediaSelect",
	KeyMediaStop: "MediaStop", KeyMediaTrackNext: "MediaTrackNext", KeyMediaTrackPrevious: "MediaTrackPrevious",
	KeyPower: "Power", KeySleep: "Sleep", KeyAudioVolumeDown: "AudioVolumeDown", KeyAudioVolumeMute: "AudioVolumeMute",
	KeyAudioVolumeUp: "AudioVolumeUp", KeyWakeUp: "WakeUp",

	KeyAgain: "Again", KeyCopy: "Copy", KeyCut: "Cut", KeyFind: "Find", KeyOpen: "Open", KeyPaste: "Paste",
	KeyProps: "Props", KeySelect: "Select", KeyUndo: "Undo", KeyHiragana: "Hiragana", KeyKatakana: "Katakana",
	KeyUnidentified: "Unidentified",
}

// KeyName returns the W3C code string for a KeyCode, or "" if unassigned.
func KeyName(code KeyCode) string {
	if int(code) < 0 || int(code) >= len(keyCodeNames) {
		return ""
	}
	return keyCodeNames[code]
}
