package models

// Direction of the sweep. The numeric value is the index multiplier.
type Direction int

const (
	DirectionReverse Direction = -1
	DirectionForward Direction = 1
)

func (d Direction) String() string {
	if d == DirectionReverse {
		return "reverse"
	}
	return "forward"
}

// ParseDirection accepts "forward" or "reverse".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "forward":
		return DirectionForward, true
	case "reverse":
		return DirectionReverse, true
	}
	return 0, false
}

// AnimationStatus is the state machine node.
type AnimationStatus string

const (
	AnimationIdle           AnimationStatus = "IDLE"
	AnimationPlayingForward AnimationStatus = "PLAYING_FORWARD"
	AnimationPlayingReverse AnimationStatus = "PLAYING_REVERSE"
)

// AnimationState is a snapshot of the sweep animation.
type AnimationState struct {
	Status    AnimationStatus `json:"status"`
	Direction string          `json:"direction"`
	Index     float64         `json:"index"`
	Window    float64         `json:"window"`
	Step      float64         `json:"step"`
	Playing   bool            `json:"playing"`
}

// ViewState mirrors what the map surface and widget layer were told to show.
type ViewState struct {
	DimPredicate        string   `json:"dim_predicate"`
	HighlightRegion     *Polygon `json:"highlight_region,omitempty"`
	CategoryListEnabled bool     `json:"category_list_enabled"`
	ResetEnabled        bool     `json:"reset_enabled"`
	FocusRequests       int      `json:"focus_requests"`
}
