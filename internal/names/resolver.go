// Package names maps sensor MAC addresses to human labels.
package names

const Unknown = "Unknown"

// Resolver is read-only once built.
type Resolver struct {
	table map[string]string
}

func NewResolver(tables ...map[string]string) *Resolver {
	r := &Resolver{table: make(map[string]string)}
	for _, t := range tables {
		for mac, name := range t {
			r.table[mac] = name
		}
	}
	return r
}

func (r *Resolver) Resolve(mac string) string {
	if name, ok := r.table[mac]; ok {
		return name
	}
	return Unknown
}

func (r *Resolver) Len() int { return len(r.table) }
