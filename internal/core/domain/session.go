package domain

// Session is the derived authentication state of one client.
// IsAuthenticated is true exactly when User is present.
type Session struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
	Loading         bool  `json:"loading"`
}

// Anonymous is the resolved, unauthenticated state.
func Anonymous() Session {
	return Session{}
}
