package broker

import (
	"sort"
	"time"
)

// peer - registered client and its outbound queue.
type peer struct {
	name   string
	conn   *Conn
	inbox  *Mailbox
	joined time.Time
}

// directory - peers by name. It is owned by the Broker goroutine and never locked.
type directory struct {
	list map[string]*peer
}

func newDirectory() *directory {
	return &directory{
		list: make(map[string]*peer),
	}
}

func (d *directory) len() int {
	return len(d.list)
}

func (d *directory) get(name string) (p *peer, ok bool) {
	p, ok = d.list[name]
	return p, ok
}

// add - registers p unless its name is taken.
func (d *directory) add(p *peer) bool {
	if _, ok := d.list[p.name]; ok {
		return false
	}
	d.list[p.name] = p
	return true
}

// remove - unregisters p if it is still the owner of its name.
func (d *directory) remove(p *peer) bool {
	if d.list[p.name] != p {
		return false
	}
	delete(d.list, p.name)
	return true
}

func (d *directory) scan(f func(*peer)) {
	for _, p := range d.list {
		f(p)
	}
}

func (d *directory) names() []string {
	names := make([]string, 0, len(d.list))
	for name := range d.list {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
