package domain

// SchemaDescriptor identifies the content schema an event belongs to.
type SchemaDescriptor struct {
	// SingularName names the wire event ("article" -> "article:update").
	SingularName string `json:"singularName"`
	// UID is the global schema identifier used to build capability keys
	// ("api::article.article" -> "api::article.article.update").
	UID string `json:"uid"`
	// PrivateFields lists payload keys that must never reach a client.
	PrivateFields []string `json:"privateFields,omitempty"`
}

// CapabilityKey returns the capability checked against a room's ability
// for the given event name.
func (s SchemaDescriptor) CapabilityKey(eventName string) string {
	return s.UID + "." + eventName
}

// WireEvent returns the event name clients see on the wire.
func (s SchemaDescriptor) WireEvent(eventName string) string {
	return s.SingularName + ":" + eventName
}

// Event is a domain event produced by an entity mutation. A nil Payload
// marks the event as a no-op (e.g. an unsaved singleton entity).
type Event struct {
	Name    string
	Schema  SchemaDescriptor
	Payload any
}
