package capture

import "strings"

// Dictation is the on/off state of continuous voice capture. It only feeds
// the pending input and never submits it.
type Dictation struct {
	recording bool
}

// ToggleDictation flips recording and reports the new state.
func (p *Pipeline) ToggleDictation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dictation.recording = !p.dictation.recording
	return p.dictation.recording
}

// AppendTranscript appends a finalized transcript fragment to the pending
// input, separated by one space. Interim fragments and fragments that arrive
// while not recording are ignored. It returns the pending input.
func (p *Pipeline) AppendTranscript(fragment string, final bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	fragment = strings.TrimSpace(fragment)
	if !final || !p.dictation.recording || fragment == "" {
		return p.input
	}
	if p.input == "" {
		p.input = fragment
	} else {
		p.input = p.input + " " + fragment
	}
	return p.input
}
