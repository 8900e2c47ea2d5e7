package speech

import "sync"

// Player tracks the single active playback of a session. Starting a new one
// replaces the previous.
type Player struct {
	mu     sync.Mutex
	active *Handle
}

func (p *Player) Play(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = &h
}

// Stop clears the active playback and reports whether there was one.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	stopped := p.active != nil
	p.active = nil
	return stopped
}

func (p *Player) Active() (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return Handle{}, false
	}
	return *p.active, true
}
