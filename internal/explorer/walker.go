package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Edwouard/SenegalAirWatch/internal/openaq"
)

// LocationClient is the slice of the OpenAQ client the walker depends on:
// fetch page N of a resource kind under a parent, get items plus a
// more-pages flag, or an error.
type LocationClient interface {
	FetchLocationsPage(ctx context.Context, iso string, page int) ([]openaq.Location, bool, error)
	FetchSensorsPage(ctx context.Context, locationID, page int) ([]openaq.Sensor, bool, error)
}

// WalkerConfig holds configuration for the hierarchical walker.
type WalkerConfig struct {
	// Client is the upstream API client (required).
	Client LocationClient

	// CountryISO filters locations (default: "SN").
	CountryISO string

	// Concurrency bounds parallel station-level sensor fetches. Kept small
	// because the upstream enforces per-minute and daily quotas.
	// Default: 3.
	Concurrency int

	// RunTimeout is the wall-clock ceiling for one traversal. Zero means
	// no ceiling beyond the caller's context.
	RunTimeout time.Duration

	Logger zerolog.Logger
}

// Walker traverses the country -> location -> sensor hierarchy and
// aggregates the findings incrementally, so partial failure never discards
// prior progress.
type Walker struct {
	client      LocationClient
	countryISO  string
	concurrency int
	runTimeout  time.Duration
	logger      zerolog.Logger
}

// NewWalker creates a walker from the given configuration.
func NewWalker(cfg WalkerConfig) *Walker {
	countryISO := cfg.CountryISO
	if countryISO == "" {
		countryISO = "SN"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Walker{
		client:      cfg.Client,
		countryISO:  countryISO,
		concurrency: concurrency,
		runTimeout:  cfg.RunTimeout,
		logger:      cfg.Logger,
	}
}

// Explore runs one complete traversal. It always returns a result; the
// error is non-nil only when the top-level locations listing itself failed
// after retries (or authentication failed), which makes the whole run
// unusable. All other failures are recorded in the result's failure list.
func (w *Walker) Explore(ctx context.Context) (*ExplorationResult, error) {
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	recorder := NewRecorder()
	extractor := NewExtractor(recorder)
	result := NewExplorationResult(w.countryISO)

	defer func() {
		result.CompletedAt = time.Now().UTC()
		result.Diagnostics = recorder.Summary()
	}()

	w.logger.Info().
		Str("run_id", result.RunID).
		Str("country", w.countryISO).
		Int("concurrency", w.concurrency).
		Msg("starting station exploration")

	err := w.discoverStations(ctx, result, recorder)
	if err != nil {
		return result, err
	}

	w.fetchAllSensors(ctx, result, recorder, extractor)

	w.logger.Info().
		Str("run_id", result.RunID).
		Int("stations", len(result.Stations)).
		Int("sensors", result.TotalSensors()).
		Int("failures", len(result.Failures)).
		Bool("aborted", result.Aborted).
		Msg("station exploration finished")

	return result, nil
}

// discoverStations pages through the locations endpoint, appending stations
// in the order the API returns them. A failure on the first page fails the
// run; a failure on a later page keeps what was already collected.
func (w *Walker) discoverStations(ctx context.Context, result *ExplorationResult, recorder *Recorder) error {
	seen := make(map[int]bool)

	for page := 1; ; page++ {
		locations, more, err := w.client.FetchLocationsPage(ctx, w.countryISO, page)
		if err != nil {
			kind := classifyError(err)
			failure := Failure{
				Kind:     kind,
				Resource: "locations",
				Message:  err.Error(),
			}
			result.Failures = append(result.Failures, failure)

			switch {
			case errors.Is(err, openaq.ErrAuth):
				return fmt.Errorf("list locations: %w", err)
			case kind == FailureQuota:
				w.abort(result, "quota exceeded while listing locations")
				return nil
			case page == 1:
				return fmt.Errorf("list locations: %w", err)
			default:
				w.logger.Warn().Err(err).Int("page", page).
					Msg("locations page failed, keeping stations collected so far")
				return nil
			}
		}

		for i := range locations {
			loc := &locations[i]
			recorder.RecordShape(KindStation, loc.Fields)

			if seen[loc.ID] {
				// Pagination overlap: first-seen wins.
				recorder.RecordDuplicate(loc.ID)
				w.logger.Debug().Int("station_id", loc.ID).Msg("duplicate station across pages, ignoring")
				continue
			}
			seen[loc.ID] = true

			station := toStation(loc)
			result.Stations = append(result.Stations, station)

			w.logger.Debug().
				Int("station_id", station.ID).
				Str("name", station.Name).
				Bool("suspect_location", station.SuspectLocation).
				Msg("station discovered")
		}

		if !more {
			return nil
		}
		if ctx.Err() != nil {
			w.abort(result, "cancelled while listing locations")
			return nil
		}
	}
}

// stationOutcome is one worker's partial result for a single station.
type stationOutcome struct {
	index   int
	sensors []*Sensor
	failure *Failure
	quota   bool
}

// fetchAllSensors explores each discovered station's sensors with a bounded
// worker pool. Workers produce independent partial outcomes; a single
// collecting pass merges them back in station order, so the result does not
// depend on worker scheduling.
func (w *Walker) fetchAllSensors(ctx context.Context, result *ExplorationResult, recorder *Recorder, extractor *Extractor) {
	if len(result.Stations) == 0 {
		return
	}

	// A quota hit anywhere stops the remaining stations.
	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()

	jobs := make(chan int, len(result.Stations))
	outcomes := make(chan stationOutcome, len(result.Stations))

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcome := w.exploreStationSensors(poolCtx, idx, result.Stations[idx], recorder, extractor)
				outcomes <- outcome
				if outcome.quota {
					cancelPool()
				}
			}
		}()
	}

	for i := range result.Stations {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	collected := make([]stationOutcome, len(result.Stations))
	quotaHit := false
	for outcome := range outcomes {
		collected[outcome.index] = outcome
		if outcome.quota {
			quotaHit = true
		}
	}

	// Merge in station order for reproducible failure accounting.
	for i, outcome := range collected {
		result.Stations[i].Sensors = outcome.sensors
		if result.Stations[i].Sensors == nil {
			result.Stations[i].Sensors = []*Sensor{}
		}
		if outcome.failure != nil {
			result.Failures = append(result.Failures, *outcome.failure)
		}
	}

	if quotaHit {
		w.abort(result, "quota exceeded while exploring sensors")
	} else if ctx.Err() != nil && !result.Aborted {
		w.abort(result, "cancelled while exploring sensors")
	}
}

// exploreStationSensors pages through one station's sensors sequentially.
// A late-page failure keeps the sensors collected from earlier pages.
func (w *Walker) exploreStationSensors(ctx context.Context, index int, station *Station, recorder *Recorder, extractor *Extractor) stationOutcome {
	outcome := stationOutcome{index: index}

	if ctx.Err() != nil {
		outcome.failure = &Failure{
			Kind:        FailureCancelled,
			Resource:    "sensors",
			StationID:   station.ID,
			StationName: station.Name,
			Message:     "skipped: run cancelled",
		}
		return outcome
	}

	for page := 1; ; page++ {
		sensors, more, err := w.client.FetchSensorsPage(ctx, station.ID, page)
		if err != nil {
			kind := classifyError(err)
			outcome.failure = &Failure{
				Kind:        kind,
				Resource:    "sensors",
				StationID:   station.ID,
				StationName: station.Name,
				Message:     err.Error(),
			}
			outcome.quota = kind == FailureQuota
			w.logger.Warn().Err(err).
				Int("station_id", station.ID).
				Str("kind", string(kind)).
				Msg("sensor listing failed")
			return outcome
		}

		for i := range sensors {
			s := &sensors[i]
			recorder.RecordShape(KindSensor, s.Fields)
			outcome.sensors = append(outcome.sensors, toSensor(s, station.ID, extractor))
		}

		if !more {
			return outcome
		}
	}
}

func (w *Walker) abort(result *ExplorationResult, reason string) {
	if result.Aborted {
		return
	}
	result.Aborted = true
	result.AbortReason = reason
	w.logger.Warn().Str("reason", reason).Msg("exploration aborted early, returning partial result")
}

// toStation maps an API location onto the domain station, flagging
// coordinates outside the Senegal bounding box as suspect.
func toStation(loc *openaq.Location) *Station {
	s := &Station{
		ID:          loc.ID,
		Name:        loc.Name,
		Locality:    loc.Locality,
		CountryCode: loc.Country.Code,
		CountryName: loc.Country.Name,
		IsMobile:    loc.IsMobile,
		IsMonitor:   loc.IsMonitor,
	}

	if loc.Coordinates != nil {
		s.Latitude = loc.Coordinates.Latitude
		s.Longitude = loc.Coordinates.Longitude
		s.HasCoordinates = true
		s.SuspectLocation = !InBoundingBox(s.Latitude, s.Longitude)
	}

	if loc.Owner != nil {
		s.Owner = loc.Owner.Name
	}
	if loc.Provider != nil {
		s.Provider = loc.Provider.Name
	}
	for _, instr := range loc.Instruments {
		if instr.Name != "" {
			s.Instruments = append(s.Instruments, instr.Name)
		}
	}

	s.FirstMeasurement = loc.DatetimeFirst.Time()
	s.LastMeasurement = loc.DatetimeLast.Time()

	return s
}

// toSensor maps an API sensor onto the domain sensor, running parameter
// extraction on the raw payload.
func toSensor(src *openaq.Sensor, stationID int, extractor *Extractor) *Sensor {
	sensor := &Sensor{
		ID:               src.ID,
		Name:             src.Name,
		StationID:        stationID,
		FirstMeasurement: src.DatetimeFirst.Time(),
		LastMeasurement:  src.DatetimeLast.Time(),
	}

	var raw any
	if len(src.Parameter) > 0 {
		// A decode failure leaves raw nil; extraction then reports the
		// unresolved path rather than erroring.
		_ = json.Unmarshal(src.Parameter, &raw)
	}
	sensor.RawParameter = raw
	sensor.Parameter = extractor.Extract(raw)

	return sensor
}

// classifyError maps client errors onto the failure taxonomy.
func classifyError(err error) FailureKind {
	switch {
	case errors.Is(err, openaq.ErrQuotaExceeded):
		return FailureQuota
	case errors.Is(err, openaq.ErrAuth):
		return FailurePermanent
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	}

	var se *openaq.StatusError
	if errors.As(err, &se) && se.Permanent() {
		return FailurePermanent
	}

	return FailureTransient
}
