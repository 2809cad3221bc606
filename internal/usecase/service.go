// Package usecase interprets map requests and orchestrates topology, layers and rendering.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.ngs.io/ocean-wms/internal/adapter/classify"
	"go.ngs.io/ocean-wms/internal/adapter/ncfile"
	"go.ngs.io/ocean-wms/internal/adapter/store"
	"go.ngs.io/ocean-wms/internal/adapter/store/artifact"
	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/adapter/store/variables"
	"go.ngs.io/ocean-wms/internal/domain"
	"go.ngs.io/ocean-wms/internal/render"
)

// MaxTideSteps caps the hourly samples synthesized for a tide feature-info range.
const MaxTideSteps = 24 * 31

// Options tunes the service.
type Options struct {
	Limits        Limits
	RenderTimeout time.Duration
}

// Response is a rendered WMS response.
type Response struct {
	Data        []byte
	ContentType string
	Cached      bool
}

// Service handles WMS requests against registered datasets.
type Service struct {
	catalog    store.DatasetCatalog
	layers     store.LayerRegistry
	topologies *topology.Store
	artifacts  *artifact.Cache
	reader     *variables.Reader
	resolver   *Resolver
	engine     *render.Engine
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the service. Artifacts are invalidated whenever a topology is rebuilt.
func NewService(catalog store.DatasetCatalog, layers store.LayerRegistry, topologies *topology.Store, artifacts *artifact.Cache, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits
	}
	topologies.OnRebuild(artifacts.Clear)
	return &Service{
		catalog:    catalog,
		layers:     layers,
		topologies: topologies,
		artifacts:  artifacts,
		reader:     variables.NewReader(logger),
		resolver:   NewResolver(layers, logger),
		engine:     render.New(logger),
		opts:       opts,
		logger:     logger.With("component", "service"),
		now:        time.Now,
	}
}

// Handle serves one WMS request for a dataset.
func (s *Service) Handle(ctx context.Context, slug string, values url.Values) (*Response, error) {
	job, err := ParseRequest(values, s.opts.Limits)
	if err != nil {
		return nil, err
	}
	ds, err := s.catalog.Dataset(ctx, slug)
	if err != nil {
		return nil, err
	}
	if job.Operation == domain.OpGetCapabilities {
		caps, err := s.Capabilities(ctx, ds)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(caps)
		if err != nil {
			return nil, err
		}
		return &Response{Data: data, ContentType: string(domain.FormatJSON)}, nil
	}

	if s.opts.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RenderTimeout)
		defer cancel()
	}
	resp, err := s.render(ctx, ds, job)
	if err != nil {
		return nil, asTimeout(err)
	}
	return resp, nil
}

func asTimeout(err error) error {
	if domain.KindOf(err) == "" && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return domain.TimeoutError(err)
	}
	return err
}

func (s *Service) render(ctx context.Context, ds domain.Dataset, job *domain.RenderJob) (*Response, error) {
	topo, err := s.topologies.Get(ctx, ds)
	if err != nil {
		return nil, err
	}
	layers, err := s.resolver.Resolve(ctx, ds, job.LayerNames)
	if err != nil {
		return nil, err
	}
	defaults, err := s.resolver.Defaults(ctx, layers)
	if err != nil {
		return nil, err
	}
	times, err := s.normalize(ds, topo, layers, defaults, job)
	if err != nil {
		return nil, err
	}

	in := render.Input{
		Job:      job,
		Topology: topo,
		Layers:   layers,
		Defaults: defaults,
		Times:    times,
		Source:   s.source(ds, topo, job, times),
	}
	fp := artifact.Fingerprint(ds.Slug, topo.SourceModTime, layers, defaults, job)
	art, hit, err := s.artifacts.GetOrRender(ctx, s.topologies.Handle(ds), fp, func(ctx context.Context) (artifact.Artifact, error) {
		out, err := s.engine.Render(ctx, in)
		return artifact.Artifact(out), err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("rendered", "dataset", ds.Slug, "operation", job.Operation, "layers", job.LayerNames, "cached", hit, "bytes", len(art.Data))
	return &Response{Data: art.Data, ContentType: art.ContentType, Cached: hit}, nil
}

// normalize fills the dataset dependent defaults of a job and returns the instants of its
// time steps.
func (s *Service) normalize(ds domain.Dataset, topo *topology.Topology, layers []domain.Layer, defaults []domain.LayerDefaults, job *domain.RenderJob) ([]time.Time, error) {
	if job.Style == nil {
		style := layers[0].DefaultStyle()
		if len(layers[0].Styles) == 0 && layers[0].Kind == domain.Direct && ds.DefaultStyle != "" {
			if st, err := domain.ParseStyle(ds.DefaultStyle); err == nil {
				style = st
			}
		}
		job.Style = &style
	}
	if _, ok := render.LookupColormap(job.Style.Colormap); !ok {
		return nil, domain.ValidationError("styles", "unknown colormap %q, want one of %s", job.Style.Colormap, strings.Join(render.Colormaps(), ", "))
	}
	if job.LogScale == nil && len(defaults) > 0 && defaults[0].LogScale != nil {
		v := *defaults[0].LogScale
		job.LogScale = &v
	}

	job.DepthIndex = topo.SurfaceIndex()
	if job.Elevation != nil {
		job.DepthIndex = topo.NearestDepth(*job.Elevation)
	}

	if topo.Variant == domain.TideHarmonicMesh {
		return s.tideTimes(job)
	}
	switch {
	case len(topo.Times) == 0:
		job.TimeIndex = []int{0}
		return nil, nil
	case job.Time.IsZero():
		job.TimeIndex = []int{topo.LatestTime()}
	case job.Time.IsRange():
		job.TimeIndex = topo.TimeRange(*job.Time.Start, *job.Time.End)
		if len(job.TimeIndex) == 0 {
			job.TimeIndex = []int{topo.NearestTime(*job.Time.End)}
		}
	default:
		job.TimeIndex = []int{topo.NearestTime(*job.Time.Start)}
	}
	if job.Operation == domain.OpGetMap || job.Operation == domain.OpGetMetadata {
		job.TimeIndex = job.TimeIndex[len(job.TimeIndex)-1:]
	}
	times := make([]time.Time, len(job.TimeIndex))
	for i, idx := range job.TimeIndex {
		times[i] = topo.Times[idx]
	}
	return times, nil
}

// tideTimes picks synthesis instants: the requested instant, hourly steps across a
// feature-info range, or the current hour.
func (s *Service) tideTimes(job *domain.RenderJob) ([]time.Time, error) {
	var times []time.Time
	switch {
	case job.Time.IsZero():
		times = []time.Time{s.now().UTC().Truncate(time.Hour)}
	case job.Time.IsRange() && job.Operation == domain.OpGetFeatureInfo:
		for t := *job.Time.Start; !t.After(*job.Time.End); t = t.Add(time.Hour) {
			if len(times) == MaxTideSteps {
				return nil, domain.ValidationError("time", "range exceeds %d hourly steps", MaxTideSteps)
			}
			times = append(times, t)
		}
	case job.Time.IsRange():
		times = []time.Time{*job.Time.End}
	default:
		times = []time.Time{*job.Time.Start}
	}
	job.TimeIndex = make([]int, len(times))
	for i := range times {
		job.TimeIndex[i] = i
	}
	// Instants are part of the job fingerprint through Time; pin them when defaulted.
	if job.Time.IsZero() {
		at := times[0]
		job.Time.Start = &at
	}
	return times, nil
}

// source reads fields at the job's depth. Tide datasets synthesize elevations at the job's
// instants instead of reading stored steps.
func (s *Service) source(ds domain.Dataset, topo *topology.Topology, job *domain.RenderJob, times []time.Time) render.FieldSource {
	if topo.Variant == domain.TideHarmonicMesh {
		return tideSource{reader: s.reader, ds: ds, topo: topo, times: times}
	}
	return fileSource{reader: s.reader, ds: ds, topo: topo, depth: job.DepthIndex}
}

type fileSource struct {
	reader *variables.Reader
	ds     domain.Dataset
	topo   *topology.Topology
	depth  int
}

func (f fileSource) Field(ctx context.Context, name string, timeIdx int) (*variables.Field, error) {
	return f.reader.Read(ctx, f.ds, f.topo, name, timeIdx, f.depth)
}

func (f fileSource) Series(ctx context.Context, name string, el topology.Element, timeIdxs []int) (*variables.Series, error) {
	return f.reader.Series(ctx, f.ds, f.topo, name, el, timeIdxs, f.depth)
}

type tideSource struct {
	reader *variables.Reader
	ds     domain.Dataset
	topo   *topology.Topology
	times  []time.Time
}

func (t tideSource) at(timeIdx int) (time.Time, error) {
	if timeIdx < 0 || timeIdx >= len(t.times) {
		return time.Time{}, fmt.Errorf("no tide instant for step %d", timeIdx)
	}
	return t.times[timeIdx], nil
}

func (t tideSource) Field(ctx context.Context, name string, timeIdx int) (*variables.Field, error) {
	at, err := t.at(timeIdx)
	if err != nil {
		return nil, err
	}
	return t.reader.Tide(ctx, t.ds, t.topo, name, at)
}

func (t tideSource) Series(ctx context.Context, name string, el topology.Element, timeIdxs []int) (*variables.Series, error) {
	series := &variables.Series{Values: make([]float64, 0, len(timeIdxs))}
	for _, idx := range timeIdxs {
		f, err := t.Field(ctx, name, idx)
		if err != nil {
			return nil, err
		}
		series.Location = f.Location
		series.Values = append(series.Values, f.At(t.topo, el))
	}
	return series, nil
}

// Register classifies a dataset when needed, loads its topology and records a direct
// layer for every gridded variable plus a vector layer for every eastward/northward pair.
// Existing layer records are left untouched. A dataset that cannot be classified is kept
// with no layers.
func (s *Service) Register(ctx context.Context, ds domain.Dataset) ([]domain.Layer, error) {
	if ds.Type == domain.Unidentified {
		ds.Type = classify.Classify(ds.URI)
		if err := s.catalog.SetType(ctx, ds.Slug, ds.Type); err != nil {
			return nil, err
		}
		if ds.Type == domain.Unidentified {
			s.logger.Warn("dataset could not be classified", "dataset", ds.Slug, "uri", ds.URI)
			return nil, nil
		}
	}
	topo, err := s.topologies.Get(ctx, ds)
	if err != nil {
		return nil, err
	}

	f, err := ncfile.Open(ds.URI)
	if err != nil {
		return nil, domain.RebuildError(ds.Slug, err)
	}
	defer f.Close()

	var direct []domain.Layer
	for _, name := range f.Header.Order {
		v := f.Header.Var(name)
		if !isDataVariable(v) || variables.Locate(topo, v) == variables.Unlocated {
			continue
		}
		if topo.Variant == domain.TideHarmonicMesh && !variables.IsTideAmplitude(f.Header, v) {
			continue
		}
		l := domain.Layer{
			Dataset:     ds.Slug,
			Kind:        domain.Direct,
			VarName:     name,
			StdName:     v.Attr("standard_name"),
			Units:       v.Attr("units"),
			Description: v.Attr("long_name"),
			Active:      true,
			Styles:      defaultStyles(ds),
		}
		stored, err := s.ensureLayer(ctx, l)
		if err != nil {
			return nil, err
		}
		direct = append(direct, stored)
	}

	out := append([]domain.Layer(nil), direct...)
	if ds.Type.SupportsVirtualLayers() {
		for _, p := range domain.UniqueVectorPairs(direct) {
			stored, err := s.layers.RegisterVirtualLayer(ctx, domain.NewVectorLayer(ds.Slug, p.U, p.V, p.Key))
			if err != nil {
				return nil, err
			}
			out = append(out, stored)
		}
	}
	s.logger.Info("dataset registered", "dataset", ds.Slug, "type", ds.Type.String(), "layers", len(out))
	return out, nil
}

// coordinateNames are standard names of grid axes rather than data.
var coordinateNames = map[string]bool{
	"longitude":               true,
	"latitude":                true,
	"time":                    true,
	"depth":                   true,
	"altitude":                true,
	"ocean_sigma_coordinate":  true,
	"projection_x_coordinate": true,
	"projection_y_coordinate": true,
}

// isDataVariable reports whether a variable carries data worth a layer: it has a standard
// name and is not an axis, coordinate or topology variable.
func isDataVariable(v *ncfile.VarInfo) bool {
	std := v.Attr("standard_name")
	if std == "" || v.Attr("cf_role") != "" || v.Attr("axis") != "" {
		return false
	}
	if coordinateNames[std] || strings.HasPrefix(std, "ocean_s_coordinate") {
		return false
	}
	return !(len(v.Dims) == 1 && v.Dims[0] == v.Name)
}

func (s *Service) ensureLayer(ctx context.Context, l domain.Layer) (domain.Layer, error) {
	existing, err := s.layers.Layer(ctx, l.Dataset, l.VarName)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Layer{}, err
	}
	return s.layers.UpsertLayer(ctx, l)
}

func defaultStyles(ds domain.Dataset) []domain.Style {
	plots := []domain.PlotType{domain.PlotPcolor, domain.PlotFilledContours, domain.PlotContours}
	if ds.Type.IsMesh() {
		plots = append(plots, domain.PlotFacets)
	}
	var styles []domain.Style
	if st, err := domain.ParseStyle(ds.DefaultStyle); err == nil {
		styles = append(styles, st)
	}
	for _, p := range plots {
		st := domain.Style{PlotType: p, Colormap: domain.DefaultColormap}
		if len(styles) == 0 || styles[0] != st {
			styles = append(styles, st)
		}
	}
	return styles
}

// Update rebuilds a dataset's topology, which invalidates its artifacts, and refreshes its
// layers.
func (s *Service) Update(ctx context.Context, slug string) ([]domain.Layer, error) {
	ds, err := s.catalog.Dataset(ctx, slug)
	if err != nil {
		return nil, err
	}
	if ds.Type != domain.Unidentified {
		if _, err := s.topologies.Build(ctx, ds); err != nil {
			return nil, err
		}
	}
	return s.Register(ctx, ds)
}

// Remove deletes a dataset's layers and its cache directory.
func (s *Service) Remove(ctx context.Context, slug string) error {
	ds, err := s.catalog.Dataset(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.layers.DeleteDataset(ctx, slug); err != nil {
		return err
	}
	return s.topologies.ClearCache(ds)
}

// HasCache reports whether a dataset has a serialized topology.
func (s *Service) HasCache(ctx context.Context, slug string) (bool, error) {
	ds, err := s.catalog.Dataset(ctx, slug)
	if err != nil {
		return false, err
	}
	return s.topologies.HasCache(ds), nil
}

// ClearCache removes a dataset's topology and artifacts.
func (s *Service) ClearCache(ctx context.Context, slug string) error {
	ds, err := s.catalog.Dataset(ctx, slug)
	if err != nil {
		return err
	}
	return s.topologies.ClearCache(ds)
}

// Datasets lists the catalog.
func (s *Service) Datasets(ctx context.Context) ([]domain.Dataset, error) {
	return s.catalog.List(ctx)
}

// Capabilities describes a dataset's active layers.
type Capabilities struct {
	Dataset  string            `json:"dataset"`
	Title    string            `json:"title,omitempty"`
	Abstract string            `json:"abstract,omitempty"`
	Type     string            `json:"type"`
	Layers   []LayerCapability `json:"layers"`
}

// LayerCapability describes one layer.
type LayerCapability struct {
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	StdName     string     `json:"std_name,omitempty"`
	Units       string     `json:"units,omitempty"`
	Description string     `json:"description,omitempty"`
	BBox        [4]float64 `json:"bbox"`
	TimeStart   string     `json:"time_start,omitempty"`
	TimeEnd     string     `json:"time_end,omitempty"`
	TimeSteps   int        `json:"time_steps"`
	Depths      []float64  `json:"depths,omitempty"`
	Styles      []string   `json:"styles"`
	DefaultMin  *float64   `json:"default_min,omitempty"`
	DefaultMax  *float64   `json:"default_max,omitempty"`
	LogScale    *bool      `json:"logscale,omitempty"`
}

// Capabilities lists every active layer with its bounds, time steps, depths and styles.
func (s *Service) Capabilities(ctx context.Context, ds domain.Dataset) (*Capabilities, error) {
	topo, err := s.topologies.Get(ctx, ds)
	if err != nil {
		return nil, err
	}
	layers, err := s.layers.Layers(ctx, ds.Slug)
	if err != nil {
		return nil, err
	}
	defaults, err := s.resolver.Defaults(ctx, layers)
	if err != nil {
		return nil, err
	}

	caps := &Capabilities{Dataset: ds.Slug, Title: ds.Title, Abstract: ds.Abstract, Type: topo.Variant.String(), Layers: []LayerCapability{}}
	env := topo.EnvelopeExtent()
	for i, l := range layers {
		if !l.Active {
			continue
		}
		lc := LayerCapability{
			Name:        l.VarName,
			Kind:        l.Kind.String(),
			StdName:     l.StdName,
			Units:       l.Units,
			Description: l.Description,
			BBox:        [4]float64{env.MinX(), env.MinY(), env.MaxX(), env.MaxY()},
			TimeSteps:   len(topo.Times),
			Depths:      topo.Depths,
			DefaultMin:  defaults[i].Min,
			DefaultMax:  defaults[i].Max,
			LogScale:    defaults[i].LogScale,
		}
		if n := len(topo.Times); n > 0 {
			lc.TimeStart = topo.Times[0].UTC().Format(time.RFC3339)
			lc.TimeEnd = topo.Times[n-1].UTC().Format(time.RFC3339)
		}
		for _, st := range l.Styles {
			lc.Styles = append(lc.Styles, st.Code())
		}
		if len(lc.Styles) == 0 {
			lc.Styles = []string{l.DefaultStyle().Code()}
		}
		caps.Layers = append(caps.Layers, lc)
	}
	sort.SliceStable(caps.Layers, func(i, j int) bool { return caps.Layers[i].Kind < caps.Layers[j].Kind })
	return caps, nil
}
