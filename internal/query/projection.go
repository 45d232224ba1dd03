package query

// Projection selects which document fields reach the client.  Include wins
// over Exclude; the id is always kept.
type Projection struct {
	Include []string
	Exclude []string
}

// Apply filters doc in place and returns it.
func (p Projection) Apply(doc map[string]any) map[string]any {
	if len(p.Include) > 0 {
		keep := make(map[string]bool, len(p.Include)+1)
		keep["id"] = true
		for _, f := range p.Include {
			keep[f] = true
		}
		for k := range doc {
			if !keep[k] {
				delete(doc, k)
			}
		}
		return doc
	}
	for _, f := range p.Exclude {
		delete(doc, f)
	}
	return doc
}
