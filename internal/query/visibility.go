package query

import (
	"fmt"

	"kbapi/internal/model"
)

// Visibility is the reusable "can-read" predicate for one principal.
// It is evaluated two ways: Matches for in-process checks after a point
// fetch, and AppendSQL for pre-filtering inside the store. Both encode the
// same rule; a document is visible iff one of the three disjuncts holds:
//
//   - the document is public
//   - the principal owns the document
//   - the document is group-visible, the principal has a group, and that
//     group equals the owner's current group
//
// Group membership is resolved through the owner row at read time, so a
// document's audience follows the owner's group if it changes later.
type Visibility struct {
	ViewerID    string
	ViewerGroup string
}

// VisibleTo builds the visibility predicate for a principal.
func VisibleTo(p model.Principal) Visibility {
	return Visibility{ViewerID: p.ID, ViewerGroup: p.Group}
}

// Matches evaluates the predicate in-process. ownerGroup is the document
// owner's current group label ("" when the owner has none or is missing).
func (v Visibility) Matches(d model.Document, ownerGroup string) bool {
	if d.Visibility == model.VisibilityPublic {
		return true
	}
	if d.OwnerID == v.ViewerID {
		return true
	}
	return d.Visibility == model.VisibilityGroup &&
		v.ViewerGroup != "" &&
		v.ViewerGroup == ownerGroup
}

// AppendSQL translates the predicate to a SQL condition over documents d
// joined to the owner row u, appending to b.
func (v Visibility) AppendSQL(b *Builder) {
	b.Add(fmt.Sprintf(
		"(d.visibility = %s OR d.owner_id = %s OR (d.visibility = %s AND %s <> '' AND u.group_name = %s))",
		b.Bind(string(model.VisibilityPublic)),
		b.Bind(v.ViewerID),
		b.Bind(string(model.VisibilityGroup)),
		b.Bind(v.ViewerGroup),
		b.Bind(v.ViewerGroup),
	))
}
