package ecs

// EachActive calls fn for every active slot in slot order.
func EachActive(p *Pool, fn func(i int)) {
	if p.Disposed() {
		return
	}
	for i := range p.Active {
		if p.Active[i].Load() {
			fn(i)
		}
	}
}
