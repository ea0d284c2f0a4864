package radio

// token completes once; err is written before done is closed.
type token struct {
	done chan struct{}
	err  error
}

func newToken() *token {
	return &token{done: make(chan struct{})}
}

func (t *token) Done() <-chan struct{} { return t.done }
func (t *token) Error() error          { return t.err }

func (t *token) complete(err error) {
	t.err = err
	close(t.done)
}
