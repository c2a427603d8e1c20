package domain

// SSOCallback carries the provider's callback form.
type SSOCallback struct {
	SessionID  string
	RequestURL string
	Unauth     bool
}

// SSOSession is the identity handed back to the browser after a verified
// callback. The token is the provider's and is not re-signed here.
type SSOSession struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// SSOLoginForm holds the fields of the auto-submitted form that sends the
// browser to the identity provider.
type SSOLoginForm struct {
	Action string
	Fields []FormField
}

type FormField struct {
	Name  string
	Value string
}
