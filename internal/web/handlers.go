package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"timelinecal/internal/apperr"
	"timelinecal/internal/datemath"
	"timelinecal/internal/interact"
	"timelinecal/internal/layout"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/render"
	"timelinecal/internal/sse"
	"timelinecal/internal/timeline"
	"timelinecal/internal/view"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// overridesFromQuery reads the per-request view parameters:
//
//	GET /api/profile?view=resourceTimelineDay&date=2017-06-07&slot=00:30&shift=1
func overridesFromQuery(r *http.Request) (view.Overrides, error) {
	q := r.URL.Query()
	o := view.Overrides{
		View:  q.Get("view"),
		Date:  q.Get("date"),
		Slot:  q.Get("slot"),
		Snap:  q.Get("snap"),
		Start: q.Get("start"),
		End:   q.Get("end"),
	}
	if raw := q.Get("shift"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, apperr.Config("shift", "not an integer: %q", raw)
		}
		o.Shift = n
	}
	return o, nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	o, err := overridesFromQuery(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	// No events are loaded, so the response is not cached.
	dp, tp, err := s.ctrl.Resolve(s.opts.Now(), o)
	if err != nil {
		writeAppError(w, err)
		return
	}
	cfg := s.ctrl.Config()
	snap := view.Snapshot{
		Env:         s.ctrl.Env(),
		DateProfile: dp,
		Profile:     tp,
		IsRtl:       cfg.IsRtl(),
		ScrollTime:  cfg.ScrollTime,
	}
	writeJSON(w, http.StatusOK, toProfileResponse(snap, cfg.WeekStart))
}

// handleEvents returns the resource rows and the occurrences inside the
// resolved active range.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	o, err := overridesFromQuery(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.cached(w, cacheKey(r), func() (string, []byte, error) {
		snap, err := s.ctrl.Snapshot(r.Context(), s.opts.Now(), o)
		if err != nil {
			return "", nil, err
		}
		appLog.Info("api events request",
			"view", snap.DateProfile.ViewType,
			"range", snap.DateProfile.ActiveRange.String(),
			"occurrences", len(snap.Occurrences),
		)

		dtos := make([]occurrenceDTO, 0, len(snap.Occurrences))
		for _, occ := range snap.Occurrences {
			dtos = append(dtos, toOccurrenceDTO(occ))
		}
		resp := eventsResponse{
			Resources:       snap.Resources,
			Occurrences:     dtos,
			TruncatedUIDs:   snap.Truncated,
			Range:           toRangeDTO(snap.DateProfile.ActiveRange),
			DisplayTimeZone: snap.Env.Location.String(),
			WeekStart:       s.ctrl.Config().WeekStart,
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return "", nil, err
		}
		return "application/json; charset=utf-8", append(body, '\n'), nil
	})
}

// measure lays the slots of tp out the way the client described.
func measure(tp *timeline.Profile, g gridDTO, rtl bool) (*timeline.Coords, error) {
	if g.ClientWidth <= 0 {
		return nil, errors.New("grid.client_width must be positive")
	}
	grid := layout.Grid{ClientWidth: g.ClientWidth, MinSlotWidth: g.MinSlotWidth, Origin: g.Origin}
	return timeline.NewCoords(grid.Measure(tp.SlotCount(), rtl), tp, rtl)
}

// handleHit maps a pointer x onto the slot and snap interval under it.
//
//	POST /api/hit {"x": 412, "grid": {"client_width": 960}, "view": {"view": "timelineDay"}}
func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	var req hitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	_, tp, err := s.ctrl.Resolve(s.opts.Now(), req.View.overrides())
	if err != nil {
		writeAppError(w, err)
		return
	}
	coords, err := measure(tp, req.Grid, s.ctrl.Config().IsRtl())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hit, ok := coords.PositionToHit(req.X)
	if !ok {
		writeJSON(w, http.StatusOK, hitResponse{})
		return
	}
	writeJSON(w, http.StatusOK, hitResponse{Hit: toHitDTO(hit)})
}

// handleDrag previews a move or resize of one occurrence and announces the
// result on the event stream. Nothing is persisted.
func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, err := interact.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.ctrl.Snapshot(r.Context(), s.opts.Now(), req.View.overrides())
	if err != nil {
		writeAppError(w, err)
		return
	}
	idx := -1
	for i, occ := range snap.Occurrences {
		if occ.InstanceKey == req.InstanceKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeAppError(w, fmt.Errorf("occurrence %q: %w", req.InstanceKey, apperr.ErrNotFound))
		return
	}

	coords, err := measure(snap.Profile, req.Grid, snap.IsRtl)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	origin, ok := coords.PositionToHit(req.OriginX)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "origin_x is outside the timeline")
		return
	}
	hit, ok := coords.PositionToHit(req.X)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "x is outside the timeline")
		return
	}

	out, err := interact.Begin(kind, snap.Occurrences[idx], origin, req.OriginResourceID).Apply(hit, req.ResourceID)
	if err != nil {
		if errors.Is(err, interact.ErrInvalidRange) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeAppError(w, err)
		return
	}

	dto := toOccurrenceDTO(out)
	if s.broker != nil {
		s.broker.Publish(sse.Event{Type: sse.TypeEventChanged, Data: map[string]any{
			"kind":         kind.String(),
			"instance_key": out.InstanceKey,
			"start":        dto.Start,
			"end":          dto.End,
			"resource_ids": out.ResourceIDs,
		}})
	}
	writeJSON(w, http.StatusOK, dragResponse{Kind: kind.String(), Occurrence: dto})
}

func (s *Server) renderSVG(r *http.Request, o view.Overrides) (view.Snapshot, string, error) {
	snap, err := s.ctrl.Snapshot(r.Context(), s.opts.Now(), o)
	if err != nil {
		return view.Snapshot{}, "", err
	}
	opt := render.OptionsFromConfig(s.ctrl.Config())
	opt.Now = snap.Env.ToMarker(s.opts.Now())
	svg, err := render.SVG(snap, opt)
	return snap, svg, err
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	o, err := overridesFromQuery(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.cached(w, cacheKey(r), func() (string, []byte, error) {
		_, svg, err := s.renderSVG(r, o)
		if err != nil {
			return "", nil, err
		}
		return "image/svg+xml", []byte(svg), nil
	})
}

type pageData struct {
	Title string
	View  string
	Start string
	End   string
	SVG   template.HTML
	// Live subscribes the page to the event stream.
	Live bool
}

// handlePage wraps the SVG in an HTML page. The wrapper carries
// data-ready once the drawing is in the DOM, which the capture waits for.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	o, err := overridesFromQuery(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.cached(w, cacheKey(r), func() (string, []byte, error) {
		snap, svg, err := s.renderSVG(r, o)
		if err != nil {
			return "", nil, err
		}
		data := pageData{
			Title: "timelinecal " + snap.DateProfile.ViewType,
			View:  snap.DateProfile.ViewType,
			Start: datemath.FormatMarker(snap.DateProfile.ActiveRange.Start),
			End:   datemath.FormatMarker(snap.DateProfile.ActiveRange.End),
			SVG:   template.HTML(stripXMLHeader(svg)),
			Live:  s.broker != nil && r.URL.Query().Get("static") == "",
		}
		var buf bytes.Buffer
		if err := pageTmpl.Execute(&buf, data); err != nil {
			return "", nil, err
		}
		return "text/html; charset=utf-8", buf.Bytes(), nil
	})
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.opts.PreviewPath == "" {
		http.NotFound(w, r)
		return
	}
	// http.ServeFile answers 404 for a missing file and 500 for others.
	http.ServeFile(w, r, s.opts.PreviewPath)
}
