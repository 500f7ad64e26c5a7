package server

import (
	"bytes"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/matzehuels/forceweave/pkg/buildinfo"
	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
	"github.com/matzehuels/forceweave/pkg/render"
	"github.com/matzehuels/forceweave/pkg/session"
	"github.com/matzehuels/forceweave/pkg/stats"
)

// Drag phases accepted by POST /sessions/{id}/drag.
const (
	DragStart = "start"
	DragMove  = "move"
	DragEnd   = "end"
)

type createRequest struct {
	Data       json.RawMessage `json:"data"`
	Mode       string          `json:"mode"`
	Categories []string        `json:"categories"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type selectionRequest struct {
	Categories []string `json:"categories"`
}

type timeRequest struct {
	// Value is the slider position; null clears the threshold.
	Value *float64 `json:"value"`
}

type dragRequest struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Phase string  `json:"phase"`
}

type sessionResponse struct {
	session.Info
	Frame graph.Frame `json:"frame"`
}

type indicatorJSON struct {
	Name    string   `json:"name"`
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
}

type statsResponse struct {
	Mode       filter.Mode     `json:"mode"`
	Counters   []stats.Entry   `json:"counters"`
	Indicators []indicatorJSON `json:"indicators"`
	Degenerate bool            `json:"degenerate"`
}

// =============================================================================
// Health
// =============================================================================

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"build":    buildinfo.Get(),
		"sessions": s.sessions.Len(),
	})
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Server) session(r *http.Request) (*session.Session, error) {
	return s.sessions.Get(chi.URLParam(r, "id"))
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	infos := []session.Info{}
	for _, id := range s.sessions.List() {
		if sess, err := s.sessions.Get(id); err == nil {
			infos = append(infos, sess.Info())
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	var mode filter.Mode
	if req.Mode != "" {
		m, err := filter.ParseMode(req.Mode)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		mode = m
	}
	var sel filter.Selection
	if req.Categories != nil {
		parsed, err := parseCategories(req.Categories)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		sel = parsed
	}
	var data graph.Data
	hasData := len(bytes.TrimSpace(req.Data)) > 0 && string(bytes.TrimSpace(req.Data)) != "null"
	if hasData {
		d, err := graph.Unmarshal(req.Data, s.logger)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		data = d
	}

	sess := s.Open(mode, sel)
	if hasData {
		sess.Load(data)
	}
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Info: sess.Info(), Frame: sess.Snapshot()})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.hub.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putData(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	d, err := graph.Unmarshal(body, s.logger)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	sess.Refresh(d)
	info := sess.Info()
	s.hub.Publish(sess.ID(), Event{Type: EventRefresh, Data: info})
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) putMode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	m, err := filter.ParseMode(req.Mode)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	sess.SetMode(m)
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	sel := filter.AllCategories()
	if req.Categories != nil {
		if sel, err = parseCategories(req.Categories); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}
	sess.SetSelection(sel)
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) putTime(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req timeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.Value == nil {
		sess.ClearTimeSlider()
	} else {
		sess.SetTimeSlider(*req.Value)
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	c, ind := sess.Statistics()
	resp := statsResponse{
		Mode:       sess.Mode(),
		Counters:   c.Entries(),
		Degenerate: ind.Degenerate(),
	}
	for _, e := range ind.Entries() {
		ij := indicatorJSON{Name: e.Name, Display: stats.Format(e.Value)}
		if !math.IsNaN(e.Value) && !math.IsInf(e.Value, 0) {
			v := e.Value
			ij.Value = &v
		}
		resp.Indicators = append(resp.Indicators, ij)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getImage draws the current frame. Query parameters: format (svg, png,
// pdf, dot; default svg) and labels.
func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	format := render.FormatSVG
	if q := r.URL.Query().Get("format"); q != "" {
		if format, err = render.ParseFormat(q); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}
	labels, _ := strconv.ParseBool(r.URL.Query().Get("labels"))

	dot := render.ToDOT(sess.Snapshot(), render.Options{Labels: labels})
	out, err := s.opts.Renderer.Render(r.Context(), dot, format)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
		}
		writeError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) postDrag(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req dragRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	ctrl := sess.Controller()
	switch strings.ToLower(req.Phase) {
	case DragStart:
		err = ctrl.DragStart(req.ID, req.X, req.Y)
	case DragMove, "":
		err = ctrl.Drag(req.ID, req.X, req.Y)
	case DragEnd:
		err = ctrl.DragEnd(req.ID)
	default:
		err = errors.New(errors.ErrCodeInvalidInput, "unknown drag phase %q", req.Phase)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.hub.Serve(w, r, sess.ID(),
		Event{Type: EventState, Data: map[string]string{"state": sess.Info().State}},
		Event{Type: EventFrame, Data: sess.Snapshot()},
	)
}

func parseCategories(names []string) (filter.Selection, error) {
	sel := filter.NewSelection()
	for _, name := range names {
		c, err := graph.ParseCategory(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		sel[c] = struct{}{}
	}
	return sel, nil
}
