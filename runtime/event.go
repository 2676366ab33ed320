package runtime

import "encoding/json"

// EventJSONPrefix marks structured event records in the log stream, for
// off-chain indexers.
const EventJSONPrefix = "EVENT_JSON:"

// Event is a versioned event record: standard name, standard version, an
// operation tag and an operation specific payload.
type Event struct {
	Standard string      `json:"standard"`
	Version  string      `json:"version"`
	Event    string      `json:"event"`
	Data     interface{} `json:"data"`
}

func (e *Event) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return EventJSONPrefix + string(b)
}
