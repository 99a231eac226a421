package models

// User is a peer participating in a room. UserID is caller-supplied and
// stable across reconnects; ConnectionID is the transport handle and the
// registry's lookup key.
type User struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	ConnectionID string `json:"connectionId"`
}

// StatusResponse is the body of the GET /status side channel.
type StatusResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}
