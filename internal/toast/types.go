package toast

import (
	"fmt"
	"strings"
	"time"
)

// Category selects the semantic color/icon of a toast.
type Category int

const (
	CategoryDefault Category = iota
	CategorySuccess
	CategoryError
	CategoryWarning
	CategoryInfo
)

var categoryNames = []string{"default", "success", "error", "warning", "info"}

func (c Category) String() string { return enumName(categoryNames, int(c)) }

func ParseCategory(s string) (Category, error) {
	i, err := parseEnum("category", categoryNames, s)
	return Category(i), err
}

// Size is the display size class of a toast.
type Size int

const (
	SizeMedium Size = iota
	SizeSmall
	SizeLarge
)

var sizeNames = []string{"medium", "small", "large"}

func (s Size) String() string { return enumName(sizeNames, int(s)) }

func ParseSize(s string) (Size, error) {
	i, err := parseEnum("size", sizeNames, s)
	return Size(i), err
}

// Position is the screen corner/edge toasts stack from. Cosmetic only.
type Position int

const (
	PositionTopRight Position = iota
	PositionTopLeft
	PositionTopCenter
	PositionBottomRight
	PositionBottomLeft
	PositionBottomCenter
)

var positionNames = []string{"top-right", "top-left", "top-center", "bottom-right", "bottom-left", "bottom-center"}

func (p Position) String() string { return enumName(positionNames, int(p)) }

func ParsePosition(s string) (Position, error) {
	i, err := parseEnum("position", positionNames, s)
	return Position(i), err
}

// Animation is the entrance/exit animation style. Cosmetic only.
type Animation int

const (
	AnimationSlideAndFade Animation = iota
	AnimationSlide
	AnimationFade
	AnimationScale
	AnimationSlideAndScale
)

var animationNames = []string{"slide-and-fade", "slide", "fade", "scale", "slide-and-scale"}

func (a Animation) String() string { return enumName(animationNames, int(a)) }

func ParseAnimation(s string) (Animation, error) {
	i, err := parseEnum("animation", animationNames, s)
	return Animation(i), err
}

// Theme is the color scheme. Cosmetic only.
type Theme int

const (
	ThemeDark Theme = iota
	ThemeLight
	ThemeColored
)

var themeNames = []string{"dark", "light", "colored"}

func (t Theme) String() string { return enumName(themeNames, int(t)) }

func ParseTheme(s string) (Theme, error) {
	i, err := parseEnum("theme", themeNames, s)
	return Theme(i), err
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

// parseEnum accepts the kebab-case name, and tolerates "_" or no separator
// ("TopRight", "top_right").
func parseEnum(kind string, names []string, s string) (int, error) {
	norm := func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.ReplaceAll(v, "-", "")
		return strings.ReplaceAll(v, "_", "")
	}
	want := norm(s)
	if want == "" {
		return 0, nil
	}
	for i, n := range names {
		if norm(n) == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

// Appearance groups the cosmetic settings forwarded to renderers.
type Appearance struct {
	Position  Position
	Animation Animation
	Theme     Theme
}

// Button is an action attached to a toast or to one of its states.
//
// The controller stores navigation directives as data; renderers interpret
// them (see render.Dispatch).
type Button struct {
	ID       string
	Text     string
	Style    string
	Icon     string
	Disabled bool

	// OnClick receives the owning toast id.
	OnClick func(toastID string)

	CloseOnClick bool

	// Navigation directives.
	TargetState *int
	SkipStates  []int
	Selector    func(toastID string) int
	Advance     bool
}

// HasNavigation reports whether any directive other than SkipStates is set.
func (b Button) HasNavigation() bool {
	return b.TargetState != nil || b.Selector != nil || b.Advance
}

// State is one step of a stateful toast.
type State struct {
	ID      string
	Title   string
	Message string
	// Category is copied onto the toast as is, so a zero State shows as
	// CategoryDefault. The presets set it explicitly.
	Category Category
	Buttons  []Button

	AutoAdvance bool
	// AutoAdvanceDelay defaults to Timing.AutoAdvanceDelay when zero.
	AutoAdvanceDelay time.Duration

	TransitionAnimation Animation
	Data                map[string]any
}

// Toast is a point-in-time copy of a toast as seen by renderers.
type Toast struct {
	ID        string
	Title     string
	Message   string
	Category  Category
	Size      Size
	CreatedAt time.Time

	// Timeout is zero for persistent toasts.
	Timeout time.Duration
	// Progress is 0..100 and only moves while Active is true.
	Progress float64
	Active   bool

	Visible       bool
	Removing      bool
	Transitioning bool

	Buttons []Button

	States         []State
	CurrentState   int
	Skipped        []int
	HasNext        bool
	HasPrevious    bool
	Remaining      int
	Completed      int
	ActiveStates   []int
	ShowNavigation bool

	Data map[string]any
}

func (t Toast) Stateful() bool { return len(t.States) > 0 }

// ShowProgress reports whether a renderer should draw a countdown bar.
func (t Toast) ShowProgress() bool { return t.Timeout > 0 && !t.Stateful() }

// QueueStatus counts toasts by admission stage.
type QueueStatus struct {
	Visible int `json:"visible"`
	Queued  int `json:"queued"`
	Total   int `json:"total"`
}

// Update carries optional field replacements for UpdateToast.
type Update struct {
	Message  *string
	Title    *string
	Category *Category
	// Data is merged into the toast data. A nil value deletes the key.
	Data map[string]any
}
