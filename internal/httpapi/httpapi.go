// Package httpapi defines the request/response shapes of spec.md §6's
// HTTP façade and a minimal http.Handler wiring them directly to
// pkg/stoicheia.Catalog. The façade is explicitly out of scope as a
// running, production service (spec.md §1's Non-goals) — this package
// exists only to pin down the six routes' wire shapes, the way
// spec.md says they're "specified only at their interfaces."
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/selection"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/pkg/stoicheia"
)

// QuiltCreateRequest is the body of POST /catalog.
type QuiltCreateRequest struct {
	Name string   `json:"name"`
	Axes []string `json:"axes"`
}

// SliceFetchRequest is the body of POST /quilt/slice/{name}.
type SliceFetchRequest struct {
	Tag        string                       `json:"tag"`
	Selections map[string]SelectionWireForm `json:"selections"`
}

// SliceApplyRequest is the body of PATCH /quilt/slice/{name}.
type SliceApplyRequest struct {
	Tag     string        `json:"tag"`
	Message string        `json:"message"`
	Patch   PatchWireForm `json:"patch"`
}

// AxisUnionRequest is the body of PATCH /axis/{name}.
type AxisUnionRequest struct {
	Labels []axis.Label `json:"labels"`
}

// SelectionWireForm is the JSON shape of spec.md §6's selection tagged
// union: variant All / LabelSlice(lo, hi) / Labels([...]) / StorageSlice(i, j).
type SelectionWireForm struct {
	Kind   string       `json:"kind"`
	Labels []axis.Label `json:"labels,omitempty"`
	Lo     axis.Label   `json:"lo,omitempty"`
	Hi     axis.Label   `json:"hi,omitempty"`
	I      int          `json:"i,omitempty"`
	J      int          `json:"j,omitempty"`
}

// ToSelection converts the wire form into an internal/selection.Selection.
func (w SelectionWireForm) ToSelection() selection.Selection {
	switch strings.ToLower(w.Kind) {
	case "labels":
		return selection.Selection{Kind: selection.Labels, Set: w.Labels}
	case "labelslice":
		return selection.Selection{Kind: selection.LabelSlice, Lo: w.Lo, Hi: w.Hi}
	case "storageslice":
		return selection.Selection{Kind: selection.StorageSlice, I: w.I, J: w.J}
	default:
		return selection.Selection{Kind: selection.All}
	}
}

// PatchWireForm is the JSON encoding of a patch used by the façade: axes
// with their labels in declaration order, and the row-major dense array.
type PatchWireForm struct {
	Axes  []AxisWireForm `json:"axes"`
	Dense []float32      `json:"dense"`
}

// AxisWireForm names one declared axis and its labels.
type AxisWireForm struct {
	Name   string       `json:"name"`
	Labels []axis.Label `json:"labels"`
}

// Handler wires the six routes of spec.md §6 directly to a Catalog with
// encoding/json — deliberately thin: no middleware, auth, or routing
// framework, matching the "specified only at their interfaces" scope note.
type Handler struct {
	catalog *stoicheia.Catalog
	mux     *http.ServeMux
}

// NewHandler builds the façade's http.Handler over catalog.
func NewHandler(catalog *stoicheia.Catalog) *Handler {
	h := &Handler{catalog: catalog, mux: http.NewServeMux()}
	h.mux.HandleFunc("/catalog", h.catalogRoute)
	h.mux.HandleFunc("/quilt/", h.quiltRoute)
	h.mux.HandleFunc("/axis/", h.axisRoute)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) catalogRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		quilts, err := h.catalog.ListQuilts(ctx)
		writeJSON(w, quilts, err)
	case http.MethodPost:
		var req QuiltCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, nil, stoierr.Wrap(stoierr.InvalidValue, "decoding request body", err))
			return
		}
		q, err := h.catalog.CreateQuilt(ctx, req.Name, req.Axes)
		writeJSON(w, q, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) quiltRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := strings.TrimPrefix(r.URL.Path, "/quilt/")
	if strings.HasPrefix(path, "slice/") {
		name := strings.TrimPrefix(path, "slice/")
		switch r.Method {
		case http.MethodPost:
			var req SliceFetchRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, nil, stoierr.Wrap(stoierr.InvalidValue, "decoding request body", err))
				return
			}
			sels := make(map[string]selection.Selection, len(req.Selections))
			for k, v := range req.Selections {
				sels[k] = v.ToSelection()
			}
			p, err := h.catalog.Fetch(ctx, name, tagOrDefault(req.Tag), sels)
			if err != nil {
				writeJSON(w, nil, err)
				return
			}
			writeJSON(w, ToWireForm(p), nil)
		case http.MethodPatch:
			var req SliceApplyRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, nil, stoierr.Wrap(stoierr.InvalidValue, "decoding request body", err))
				return
			}
			p, err := req.Patch.ToPatch()
			if err != nil {
				writeJSON(w, nil, err)
				return
			}
			commID, err := h.catalog.ApplyPatch(ctx, name, tagOrDefault(req.Tag), req.Message, p)
			writeJSON(w, map[string]int64{"comm_id": commID}, err)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}
	name := path
	q, err := h.catalog.GetQuilt(ctx, name)
	writeJSON(w, q, err)
}

func (h *Handler) axisRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := strings.TrimPrefix(r.URL.Path, "/axis/")
	switch r.Method {
	case http.MethodGet:
		a, err := h.catalog.ReadAxis(ctx, name)
		writeJSON(w, a.Labels(), err)
	case http.MethodPatch:
		var req AxisUnionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, nil, stoierr.Wrap(stoierr.InvalidValue, "decoding request body", err))
			return
		}
		a, err := h.catalog.UnionAxis(ctx, name, req.Labels)
		writeJSON(w, a.Labels(), err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ToWireForm encodes a patch's axes and dense array for JSON transport.
func ToWireForm(p *patch.Patch) PatchWireForm {
	axes := p.Axes()
	out := PatchWireForm{Axes: make([]AxisWireForm, len(axes)), Dense: p.Dense()}
	for i, a := range axes {
		out.Axes[i] = AxisWireForm{Name: a.Name, Labels: a.Labels()}
	}
	return out
}

// ToPatch rebuilds a patch from its wire form, validating shape the same
// way patch.New does. Exported so callers outside the façade (e.g. the
// CLI's commit command, reading a patch from a JSON file) can reuse the
// same wire shape without duplicating the conversion.
func (w PatchWireForm) ToPatch() (*patch.Patch, error) {
	axes := make([]axis.Axis, len(w.Axes))
	for i, a := range w.Axes {
		ax, err := axis.New(a.Name, a.Labels)
		if err != nil {
			return nil, err
		}
		axes[i] = ax
	}
	return patch.New(axes, w.Dense)
}

func tagOrDefault(tag string) string {
	if tag == "" {
		return "latest"
	}
	return tag
}

func writeJSON(w http.ResponseWriter, v any, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if stoierr.Is(err, stoierr.NotFound) {
			status = http.StatusNotFound
		} else if stoierr.Is(err, stoierr.InvalidValue) || stoierr.Is(err, stoierr.MisalignedAxes) || stoierr.Is(err, stoierr.TooLarge) {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
