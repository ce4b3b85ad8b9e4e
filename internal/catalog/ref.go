// Package catalog resolves source category labels to destination
// category references.
package catalog

type refKind int

const (
	refUnset refKind = iota
	refResolved
	refName
)

// CategoryRef identifies a destination category either by a resolved
// destination-side identifier or by a name the destination is expected
// to create-or-match. The zero value is Unset.
type CategoryRef struct {
	kind refKind
	id   string
	name string
}

// Resolved returns a reference to a known destination category id.
func Resolved(id string) CategoryRef {
	return CategoryRef{kind: refResolved, id: id}
}

// Name returns a reference by category name.
func Name(label string) CategoryRef {
	return CategoryRef{kind: refName, name: label}
}

// Unset returns the empty reference.
func Unset() CategoryRef {
	return CategoryRef{}
}

// IsUnset reports whether the reference carries no category at all.
func (r CategoryRef) IsUnset() bool { return r.kind == refUnset }

// ID returns the destination category id and whether the reference is resolved.
func (r CategoryRef) ID() (string, bool) { return r.id, r.kind == refResolved }

// Label returns the category name and whether the reference is by name.
func (r CategoryRef) Label() (string, bool) { return r.name, r.kind == refName }

func (r CategoryRef) String() string {
	switch r.kind {
	case refResolved:
		return "id:" + r.id
	case refName:
		return "name:" + r.name
	default:
		return "unset"
	}
}
