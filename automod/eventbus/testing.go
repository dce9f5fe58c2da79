package eventbus

import (
	"context"
	"sync"

	"github.com/mychatmanager/chatmod/automod/model"
)

// Recorder is a Handler fixture which keeps every event it receives.
type Recorder struct {
	lk     sync.Mutex
	events []model.Event
}

func (r *Recorder) Handle(ctx context.Context, evt model.Event) error {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []model.Event {
	r.lk.Lock()
	defer r.lk.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

func (r *Recorder) Len() int {
	r.lk.Lock()
	defer r.lk.Unlock()
	return len(r.events)
}
