package domain

// Technician is a roster entry. The roster is seeded externally and never
// mutated by request lifecycle operations; CurrentWorkload is computed per
// read from open assigned requests, not stored.
type Technician struct {
	ID              string
	Name            string
	Expertise       []string
	CurrentWorkload int
}
