package common

// Live-channel event names shared by server and client.
const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "getOnlineUsers"
)

// RefreshTokenCookie is the name of the HttpOnly cookie carrying the refresh
// token. It is scoped to the refresh endpoint path so that ordinary API
// requests never send it.
const RefreshTokenCookie = "refresh_token"
