package recognition

// Microphone is the page's single recognition slot. It hands out run ids and
// routes service events to the session that owns the current run.
//
// Like [Session], a Microphone is confined to the page's event loop.
type Microphone struct {
	holder *Session
	lastID uint64
}

// NewMicrophone returns a free microphone.
func NewMicrophone() *Microphone {
	return &Microphone{}
}

// Holder returns the session currently holding the microphone, or nil.
func (m *Microphone) Holder() *Session {
	return m.holder
}

// Deliver routes ev to the session running ev.RunID. It reports false when the
// event is stale: the run was stopped, replaced or never existed.
func (m *Microphone) Deliver(ev Event) bool {
	s := m.holder
	if s == nil || ev.RunID == 0 || s.runID != ev.RunID {
		return false
	}
	s.deliver(ev)
	return true
}

func (m *Microphone) claim(s *Session) uint64 {
	m.holder = s
	m.lastID++
	return m.lastID
}

func (m *Microphone) releaseIfHeld(s *Session) {
	if m.holder == s {
		m.holder = nil
	}
}
