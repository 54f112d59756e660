package checkout

import "sync"

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Presenter shows an outcome to the user. It must not block.
type Presenter interface {
	Present(kind Kind, message string)
}

type PresenterFunc func(kind Kind, message string)

func (f PresenterFunc) Present(kind Kind, message string) {
	f(kind, message)
}

type Dialog struct {
	Kind    Kind
	Message string
}

// Dialogs queues presented outcomes until the page takes them. Each dialog
// is shown once.
type Dialogs struct {
	mu      sync.Mutex
	pending []Dialog
}

func (d *Dialogs) Present(kind Kind, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, Dialog{Kind: kind, Message: message})
}

// Take returns the pending dialogs and forgets them.
func (d *Dialogs) Take() []Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.pending
	d.pending = nil
	return out
}
