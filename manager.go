package truetm

// Manager owns the window collection, the tag view, and focus. Windows are
// kept in layout order (first is master). Focus history, tags, and the view
// all reference windows by ID only, so closing a window can never dangle.
type Manager struct {
	windows []*Window
	focusID int   // 0 when nothing is focused
	history []int // focus history, most recent last

	view     TagSet
	prevView TagSet

	// Broadcast mirrors focused-window input to every visible window.
	Broadcast bool
}

// NewManager creates an empty manager viewing tag 1.
func NewManager() *Manager {
	return &Manager{view: SingleTag(1), prevView: SingleTag(1)}
}

// NextID returns the lowest free window id (>= 1).
func (m *Manager) NextID() int {
	for id := 1; ; id++ {
		if m.Get(id) == nil {
			return id
		}
	}
}

// Add inserts a window at the front of the layout order (it becomes master)
// and focuses it when it is visible under the current view.
func (m *Manager) Add(w *Window) {
	m.windows = append([]*Window{w}, m.windows...)
	if m.isVisible(w.ID) {
		m.setFocus(w.ID)
	} else {
		m.pickFocus()
	}
}

// Get returns the window with the given id, or nil.
func (m *Manager) Get(id int) *Window {
	for _, w := range m.windows {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Windows returns every window in layout order.
func (m *Manager) Windows() []*Window {
	return m.windows
}

// Len returns the number of windows.
func (m *Manager) Len() int {
	return len(m.windows)
}

// View returns the current view tag set.
func (m *Manager) View() TagSet {
	return m.view
}

// Visible returns the windows whose tags intersect the view, in layout order.
func (m *Manager) Visible() []*Window {
	var out []*Window
	for _, w := range m.windows {
		if w.Tags.Intersects(m.view) {
			out = append(out, w)
		}
	}
	return out
}

// AnyWithTag reports whether some window carries the given tag.
func (m *Manager) AnyWithTag(tag int) bool {
	for _, w := range m.windows {
		if w.Tags.Contains(tag) {
			return true
		}
	}
	return false
}

// Focused returns the focused window, or nil.
func (m *Manager) Focused() *Window {
	if m.focusID == 0 {
		return nil
	}
	return m.Get(m.focusID)
}

// setFocus records a focus change in the history (unique stack, newest last).
func (m *Manager) setFocus(id int) {
	m.focusID = id
	if id == 0 {
		return
	}
	for i, h := range m.history {
		if h == id {
			m.history = append(m.history[:i], m.history[i+1:]...)
			break
		}
	}
	m.history = append(m.history, id)
}

// isVisible reports whether the window with id intersects the current view.
func (m *Manager) isVisible(id int) bool {
	w := m.Get(id)
	return w != nil && w.Tags.Intersects(m.view)
}

// pickFocus selects a focus after the visible set changed: the most recent
// focus-history entry still visible, else the leftmost visible window.
func (m *Manager) pickFocus() {
	if m.isVisible(m.focusID) {
		return
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.isVisible(m.history[i]) {
			m.setFocus(m.history[i])
			return
		}
	}
	if vis := m.Visible(); len(vis) > 0 {
		m.setFocus(vis[0].ID)
		return
	}
	m.focusID = 0
}

// SetView switches the view tag set. Empty sets are rejected silently.
// A real change pushes the old view into the single-depth previous slot.
func (m *Manager) SetView(view TagSet) {
	if view.IsEmpty() || view == m.view {
		return
	}
	m.prevView = m.view
	m.view = view
	m.pickFocus()
}

// PreviousView returns the single-depth view history slot.
func (m *Manager) PreviousView() TagSet {
	return m.prevView
}

// Remove deletes a window by id. If the visible set becomes empty and a
// different previous view exists, the view falls back to it. Focus is
// re-selected by the history rule either way.
func (m *Manager) Remove(id int) *Window {
	var removed *Window
	for i, w := range m.windows {
		if w.ID == id {
			removed = w
			m.windows = append(m.windows[:i], m.windows[i+1:]...)
			break
		}
	}
	if removed == nil {
		return nil
	}

	for i, h := range m.history {
		if h == id {
			m.history = append(m.history[:i], m.history[i+1:]...)
			break
		}
	}
	if m.focusID == id {
		m.focusID = 0
	}

	if len(m.Visible()) == 0 && m.prevView != m.view {
		m.view = m.prevView
	}
	m.pickFocus()
	return removed
}

// SetTags replaces a window's tag set. Empty sets are rejected silently.
// The window may leave the view; focus re-selection follows.
func (m *Manager) SetTags(id int, tags TagSet) {
	w := m.Get(id)
	if w == nil || tags.IsEmpty() {
		return
	}
	w.Tags = tags
	m.pickFocus()
}

// ToggleTag flips one tag on a window, rejecting a change that would leave
// the window untagged.
func (m *Manager) ToggleTag(id, tag int) {
	w := m.Get(id)
	if w == nil {
		return
	}
	next := w.Tags.Toggle(tag)
	if next.IsEmpty() {
		return
	}
	w.Tags = next
	m.pickFocus()
}

// FocusNext moves focus to the next visible window in layout order,
// wrapping.
func (m *Manager) FocusNext() {
	m.cycleFocus(1)
}

// FocusPrev moves focus to the previous visible window in layout order,
// wrapping.
func (m *Manager) FocusPrev() {
	m.cycleFocus(-1)
}

func (m *Manager) cycleFocus(dir int) {
	vis := m.Visible()
	if len(vis) == 0 {
		return
	}
	cur := -1
	for i, w := range vis {
		if w.ID == m.focusID {
			cur = i
			break
		}
	}
	if cur < 0 {
		m.setFocus(vis[0].ID)
		return
	}
	next := (cur + dir + len(vis)) % len(vis)
	m.setFocus(vis[next].ID)
}

// FocusByID focuses the visible window with the given id; no-op when the id
// is absent or hidden.
func (m *Manager) FocusByID(id int) {
	if m.isVisible(id) {
		m.setFocus(id)
	}
}

// SwapWithMaster exchanges the focused window with the first visible
// position. When the focused window already is master it swaps with the
// second visible window instead, focus following the master slot.
func (m *Manager) SwapWithMaster() {
	vis := m.Visible()
	if len(vis) < 2 {
		return
	}

	target := m.focusID
	if target == vis[0].ID {
		target = vis[1].ID
	}

	a, b := -1, -1
	for i, w := range m.windows {
		if w.ID == vis[0].ID {
			a = i
		}
		if w.ID == target {
			b = i
		}
	}
	if a < 0 || b < 0 {
		return
	}
	m.windows[a], m.windows[b] = m.windows[b], m.windows[a]
	m.setFocus(target)
}
