package store

// Credentials is the saved login for a profile.
type Credentials struct {
	Token     string
	UserID    int64
	UserName  string
	UserEmail string
	APIURL    string
}

// Draft is composer text that has not been sent successfully.
type Draft struct {
	ConversationID int64
	Body           string
	LastError      string
	UpdatedAt      int64
}
