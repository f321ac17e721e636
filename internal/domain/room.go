package domain

// RoomType controls how the authorization gate treats a room.
type RoomType int

const (
	// RoomFullAccess rooms receive every event without a capability check.
	RoomFullAccess RoomType = iota
	// RoomScoped rooms receive only events their permission set allows.
	RoomScoped
)

func (t RoomType) String() string {
	switch t {
	case RoomFullAccess:
		return "full_access"
	case RoomScoped:
		return "scoped"
	default:
		return "unknown"
	}
}

// Permission is a single grantable action, e.g. "api::article.article.find".
type Permission struct {
	Action string `json:"action"`
}

// Room is a fan-out group of connections sharing a permission scope.
// Rooms are produced fresh by a strategy on every broadcast and live only
// for the duration of that broadcast.
type Room struct {
	Name        string
	Type        RoomType
	Permissions []Permission
	// Credentials is an opaque per-strategy blob forwarded into the
	// sanitization context.
	Credentials any
}
