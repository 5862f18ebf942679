package chat

// State is the lifecycle of the conversation in view: Draft or Active.
type State interface {
	isState()
}

// Draft is a conversation that exists only locally and has no server id.
type Draft struct{}

// Active is a conversation the server knows by ID. Stale is set after a
// send until the next history refresh completes.
type Active struct {
	ID    string
	Stale bool
}

func (Draft) isState()  {}
func (Active) isState() {}

// ConversationID returns the id of an Active state.
func ConversationID(s State) (string, bool) {
	if a, ok := s.(Active); ok {
		return a.ID, true
	}
	return "", false
}

// afterSend applies a successful exchange. A Draft adopts the server id; an
// Active conversation keeps its own. A Draft stays Draft if the server
// returned no id.
func afterSend(s State, serverID string) State {
	switch st := s.(type) {
	case Active:
		return Active{ID: st.ID, Stale: true}
	default:
		if serverID == "" {
			return Draft{}
		}
		return Active{ID: serverID, Stale: true}
	}
}

// afterRefresh marks an Active conversation as synced.
func afterRefresh(s State) State {
	if st, ok := s.(Active); ok {
		return Active{ID: st.ID}
	}
	return s
}

// load switches to a previously fetched conversation.
func load(id string) State {
	return Active{ID: id}
}

// reset returns to an empty Draft.
func reset() State {
	return Draft{}
}
