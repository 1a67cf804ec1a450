// Package interact turns pointer hits into edits of an occurrence's range:
// moving it, or dragging either of its edges.
package interact

import (
	"errors"
	"fmt"
	"slices"

	"timelinecal/internal/datemath"
	"timelinecal/internal/model"
	"timelinecal/internal/timeline"
)

// Kind selects what a drag changes.
type Kind int

const (
	Move Kind = iota
	ResizeStart
	ResizeEnd
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case ResizeStart:
		return "resize-start"
	case ResizeEnd:
		return "resize-end"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Move, ResizeStart, ResizeEnd} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("interact: unknown drag kind %q", s)
}

// ErrInvalidRange is returned when a drag would leave the end at or before
// the start.
var ErrInvalidRange = errors.New("interact: end must be after start")

// Drag is one pointer interaction in progress.
type Drag struct {
	kind           Kind
	occ            model.Occurrence
	origin         timeline.Hit
	originResource string
}

// Begin starts a drag of occ. origin is the hit under the pointer when the
// drag started and originResource the row it started on.
func Begin(kind Kind, occ model.Occurrence, origin timeline.Hit, originResource string) *Drag {
	occ.End = occ.DefaultEnd()
	occ.ResourceIDs = slices.Clone(occ.ResourceIDs)
	return &Drag{kind: kind, occ: occ, origin: origin, originResource: originResource}
}

func (d *Drag) Kind() Kind { return d.kind }

// Occurrence is the occurrence as it was when the drag began.
func (d *Drag) Occurrence() model.Occurrence { return d.occ }

// Apply returns the occurrence as it would look dropped on hit. resourceID
// is the row under the pointer; it only matters for moves.
func (d *Drag) Apply(hit timeline.Hit, resourceID string) (model.Occurrence, error) {
	out := d.occ
	out.ResourceIDs = slices.Clone(d.occ.ResourceIDs)

	switch d.kind {
	case ResizeEnd:
		out.End = hit.DateSpan.Range.End
	case ResizeStart:
		out.Start = hit.DateSpan.Range.Start
	case Move:
		delta := datemath.Between(d.origin.DateSpan.Range.Start, hit.DateSpan.Range.Start, hit.DateSpan.AllDay)
		out.Start = delta.AddTo(out.Start)
		out.End = delta.AddTo(out.End)
		if resourceID != "" && resourceID != d.originResource && !out.HasResource(resourceID) {
			out.ResourceIDs = replaceResource(out.ResourceIDs, d.originResource, resourceID)
		}
	default:
		return model.Occurrence{}, fmt.Errorf("interact: unknown drag kind %s", d.kind)
	}

	if !out.End.After(out.Start) {
		return model.Occurrence{}, fmt.Errorf("%w: %s .. %s", ErrInvalidRange,
			datemath.FormatMarker(out.Start), datemath.FormatMarker(out.End))
	}
	return out, nil
}

func replaceResource(ids []string, from, to string) []string {
	if i := slices.Index(ids, from); i >= 0 {
		ids[i] = to
		return ids
	}
	return append(ids, to)
}
