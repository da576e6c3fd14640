package countdown

// TickFunc receives the breakdown of an item on every tick.
type TickFunc func(Breakdown)

// ExpiredFunc is called once when an item's deadline is crossed.
type ExpiredFunc func(itemID string)

type observer struct {
	id        uint64
	onTick    TickFunc
	onExpired ExpiredFunc
}

// observerList keeps observers in registration order. Its length is the
// entry's reference count.
type observerList struct {
	items []observer
}

func (l *observerList) add(o observer) {
	l.items = append(l.items, o)
}

// remove drops the observer with the given id and reports whether it was present.
func (l *observerList) remove(id uint64) bool {
	for i, o := range l.items {
		if o.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *observerList) len() int {
	return len(l.items)
}

// snapshot returns a copy that can be notified after the registry lock is released.
func (l *observerList) snapshot() observerList {
	return observerList{items: append([]observer(nil), l.items...)}
}

func (l observerList) notify(b Breakdown) {
	for _, o := range l.items {
		o.onTick(b)
	}
}

// expiryHandler returns the expiry callback of the earliest observer that supplied one.
func (l observerList) expiryHandler() ExpiredFunc {
	for _, o := range l.items {
		if o.onExpired != nil {
			return o.onExpired
		}
	}
	return nil
}
