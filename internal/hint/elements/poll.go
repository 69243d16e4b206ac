package elements

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/MRamiBalles/hintserver/internal/hint"
)

// resultLinger is how long the winner stays on screen after a poll closes.
const resultLinger = 5 * time.Second

var (
	ErrPollClosed    = errors.New("poll closed")
	ErrUnknownOption = errors.New("unknown poll option")
)

// PollResult is the outcome of a closed poll.
type PollResult struct {
	PollID   string         `json:"poll_id"`
	Question string         `json:"question"`
	Winner   string         `json:"winner"`
	Results  map[string]int `json:"results"`
}

// Poll shows an audience vote with live counts, then the winner.
type Poll struct {
	hint.Base

	Question string
	Options  []string
	votes    map[string]int
	closes   time.Time
	clock    hint.Clock

	closed bool
	result PollResult
	// OnResolved runs once on the tick goroutine when voting ends.
	OnResolved func(PollResult)
}

// NewPoll creates a poll accepting votes for d.
func NewPoll(id, question string, options []string, d time.Duration, clock hint.Clock) *Poll {
	if clock == nil {
		clock = hint.ClockFunc(time.Now)
	}
	p := &Poll{
		Base: hint.Base{
			CustomID: "poll:" + id,
			Flags:    hint.DefaultFlags,
			Offset:   6,
			Align:    hint.AlignRight,
		},
		Question: question,
		Options:  slices.Clone(options),
		votes:    make(map[string]int, len(options)),
		closes:   clock.Now().Add(d),
		clock:    clock,
	}
	for _, o := range options {
		p.votes[o] = 0
	}
	return p
}

// PollID returns the id the poll was created with.
func (p *Poll) PollID() string {
	return strings.TrimPrefix(p.CustomID, "poll:")
}

// CastVote counts one vote for option.
func (p *Poll) CastVote(option string) error {
	if p.closed {
		return ErrPollClosed
	}
	if _, ok := p.votes[option]; !ok {
		return errors.Wrapf(ErrUnknownOption, "%q", option)
	}
	p.votes[option]++
	return nil
}

// Votes returns the current count for option.
func (p *Poll) Votes(option string) int {
	return p.votes[option]
}

// Result returns the outcome once the poll has closed.
func (p *Poll) Result() (PollResult, bool) {
	return p.result, p.closed
}

// OnUpdate implements hint.Element.
func (p *Poll) OnUpdate(buf *strings.Builder) error {
	now := p.clock.Now()
	if !p.closed && !now.Before(p.closes) {
		p.resolve()
	}
	if p.closed && !now.Before(p.closes.Add(resultLinger)) {
		p.Deactivate()
	}
	return nil
}

// resolve picks the option with the most votes. Ties go to the option
// listed first.
func (p *Poll) resolve() {
	winner := ""
	best := -1
	for _, o := range p.Options {
		if p.votes[o] > best {
			best = p.votes[o]
			winner = o
		}
	}
	results := make(map[string]int, len(p.votes))
	for k, v := range p.votes {
		results[k] = v
	}
	p.closed = true
	p.result = PollResult{PollID: p.PollID(), Question: p.Question, Winner: winner, Results: results}
	if p.OnResolved != nil {
		p.OnResolved(p.result)
	}
}

// OnDraw implements hint.Element.
func (p *Poll) OnDraw(pl hint.Player, buf *strings.Builder) (bool, error) {
	if p.closed {
		fmt.Fprintf(buf, "<b>%s</b>\nWinner: <color=#7fff7f>%s</color>", p.Question, p.result.Winner)
		return true, nil
	}
	left := p.closes.Sub(p.clock.Now()).Round(time.Second)
	fmt.Fprintf(buf, "<b>%s</b> <size=70%%>(%s)</size>", p.Question, left)
	for i, o := range p.Options {
		fmt.Fprintf(buf, "\n%d. %s: %d", i+1, o, p.votes[o])
	}
	return true, nil
}
