package orchestrator

// EventKind discriminates the frames a turn emits.
type EventKind int

const (
	// EventText is a chunk of assistant prose.
	EventText EventKind = iota
	// EventHoldings carries a portfolio payload for the client's table view.
	EventHoldings
	// EventStocks carries a stock card/list/movers payload.
	EventStocks
	// EventTitle carries a freshly generated conversation title.
	EventTitle
	// EventDone terminates the stream. Exactly one per turn.
	EventDone
)

// Event is one frame of a turn's output stream. Data holds the text for
// EventText and pre-marshaled JSON for the tagged kinds; it is empty for
// EventDone.
type Event struct {
	Kind EventKind
	Data string
}

func textEvent(s string) Event    { return Event{Kind: EventText, Data: s} }
func doneEvent() Event            { return Event{Kind: EventDone} }
func taggedEvent(k EventKind, json string) Event {
	return Event{Kind: k, Data: json}
}
