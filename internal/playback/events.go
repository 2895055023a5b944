package playback

// Event is one of Open, Tick, Next, Previous or Close.
type Event interface {
	event()
}

// Open starts a playback session at story StartIndex of AuthorID's group.
type Open struct {
	AuthorID   string
	StartIndex int
}

// Tick advances progress. It is ignored unless Session is the current session.
type Tick struct {
	Session uint64
}

// Next moves to the following story, the next group, or ends the session.
type Next struct{}

// Previous moves to the preceding story or the last story of the previous group.
type Previous struct{}

// Close ends the session.
type Close struct{}

func (Open) event()     {}
func (Tick) event()     {}
func (Next) event()     {}
func (Previous) event() {}
func (Close) event()    {}
