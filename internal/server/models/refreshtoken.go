package models

import "time"

// RefreshToken is a server-stored long-lived credential. The token value is
// opaque to clients and usable exactly once per rotation.
type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}
