package domain

// PresenceEntry binds a user identity to a live connection. Entries are
// ephemeral: they live only in the presence registry and die with the
// underlying connection. At most one entry exists per user at any time;
// the first registered connection wins until it disconnects.
type PresenceEntry struct {
	UserID string `json:"userId"`
	ConnID string `json:"socketId"`
}
