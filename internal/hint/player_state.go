package hint

import (
	"github.com/MRamiBalles/hintserver/internal/hint/layout"
)

// PlayerState is what the scheduler remembers about one player between
// passes.
type PlayerState struct {
	queue MessageQueue

	paused    bool
	aspect    float64
	hOffset   float64
	lastEmpty bool

	tempLines layout.Cache
}

func newPlayerState() *PlayerState {
	return &PlayerState{}
}

// refreshAspect recomputes the horizontal offset when the aspect ratio
// changed.
func (st *PlayerState) refreshAspect(aspect float64) {
	if aspect == st.aspect {
		return
	}
	st.aspect = aspect
	st.hOffset = HorizontalOffset(aspect)
}

// PlayerStatus is a read-only summary of a player's hint state.
type PlayerStatus struct {
	PlayerID  string  `json:"player_id"`
	Paused    bool    `json:"paused"`
	Showing   bool    `json:"showing_temporary"`
	Queued    int     `json:"queued_temporary"`
	LastEmpty bool    `json:"last_send_empty"`
	HOffset   float64 `json:"horizontal_offset"`
}
