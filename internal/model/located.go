package model

// Loc implements geo.Located. Returns nil when the worker has no known
// position.
func (w Worker) Loc() *Location { return w.Location }

// Loc implements geo.Located. Job postings always carry a location.
func (j JobPosting) Loc() *Location {
	l := j.Location
	return &l
}
