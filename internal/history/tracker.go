package history

// Token identifies one history request. Tokens increase monotonically.
type Token uint64

// Tracker decides which in-flight history result may be committed: only the
// one carrying the most recently issued token. Not safe for concurrent use.
type Tracker struct {
	latest Token
}

// Begin issues a new token, superseding every earlier one.
func (t *Tracker) Begin() Token {
	t.latest++
	return t.latest
}

// Invalidate supersedes the outstanding token without issuing a request.
func (t *Tracker) Invalidate() {
	t.latest++
}

// Accept reports whether a result tagged with tok is still current.
func (t *Tracker) Accept(tok Token) bool {
	return tok != 0 && tok == t.latest
}

// Latest returns the most recent token.
func (t *Tracker) Latest() Token {
	return t.latest
}
