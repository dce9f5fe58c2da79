package enforce

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In-memory ChatPlatform fixture which records every call.
type MockPlatform struct {
	lk    sync.Mutex
	Calls []string
	// keyed by operation name ("delete", "restrict", "kick", "ban", "send")
	Fail   map[string]error
	nextID int64
}

var _ ChatPlatform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{Fail: make(map[string]error), nextID: 1000}
}

func (p *MockPlatform) record(op, call string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Calls = append(p.Calls, call)
	return p.Fail[op]
}

func (p *MockPlatform) CallLog() []string {
	p.lk.Lock()
	defer p.lk.Unlock()
	return append([]string(nil), p.Calls...)
}

func (p *MockPlatform) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return p.record("delete", fmt.Sprintf("delete %d %d", chatID, messageID))
}

func (p *MockPlatform) Restrict(ctx context.Context, chatID, userID int64, perms Permissions, until *time.Time) error {
	return p.record("restrict", fmt.Sprintf("restrict %d %d send=%v", chatID, userID, perms.CanSendMessages))
}

func (p *MockPlatform) Kick(ctx context.Context, chatID, userID int64) error {
	return p.record("kick", fmt.Sprintf("kick %d %d", chatID, userID))
}

func (p *MockPlatform) Ban(ctx context.Context, chatID, userID int64) error {
	return p.record("ban", fmt.Sprintf("ban %d %d", chatID, userID))
}

func (p *MockPlatform) SendMessage(ctx context.Context, chatID int64, text string) (MessageHandle, error) {
	if err := p.record("send", fmt.Sprintf("send %d", chatID)); err != nil {
		return MessageHandle{}, err
	}
	p.lk.Lock()
	defer p.lk.Unlock()
	p.nextID++
	return MessageHandle{ChatID: chatID, MessageID: p.nextID}, nil
}
