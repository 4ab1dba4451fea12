package timetable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/prayer"
)

// maxBodySize bounds how much of a timings response is read
const maxBodySize = 1 << 20

// upstream timing field for each event
var timingFields = map[prayer.EventName]string{
	prayer.Fajr:    "Fajr",
	prayer.Dhuhr:   "Dhuhr",
	prayer.Asr:     "Asr",
	prayer.Maghrib: "Maghrib",
	prayer.Isha:    "Isha",
}

type timingsResponse struct {
	Code int `json:"code"`
	Data struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

// HTTPProvider fetches daily timings from an Aladhan-style JSON API:
//
//	GET {base}/timings/{DD-MM-YYYY}?latitude=..&longitude=..&method=..
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	method  int
	tz      *time.Location
	log     logger.Logger
}

// NewHTTPProvider creates a provider. Times in responses are read as wall clock
// times in tz.
func NewHTTPProvider(baseURL string, method int, tz *time.Location, timeout time.Duration) *HTTPProvider {
	if tz == nil {
		tz = time.UTC
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		method:  method,
		tz:      tz,
		log:     logger.Default().WithComponent(logger.ComponentTimetable),
	}
}

// Method returns the calculation method sent upstream
func (p *HTTPProvider) Method() int {
	return p.method
}

// GetEvents implements Provider
func (p *HTTPProvider) GetEvents(ctx context.Context, date time.Time, loc prayer.Location) (*prayer.DayEvents, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, p.tz)

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("method", strconv.Itoa(p.method))
	endpoint := fmt.Sprintf("%s/timings/%s?%s", p.baseURL, day.Format("02-01-2006"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.E("timetable.fetch", apperrors.KindUnknown, err)
	}
	req.Header.Set("Accept", "application/json")

	p.log.DebugContext(ctx, "Timetable fetch start", "date", day.Format(DateLayout), "location", loc.String())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.E("timetable.fetch", apperrors.KindTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.E("timetable.fetch", apperrors.KindTransient,
			fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, apperrors.E("timetable.fetch", apperrors.KindTransient, err)
	}

	events, err := p.parse(day, body)
	if err != nil {
		return nil, apperrors.E("timetable.parse", apperrors.KindCorrupt, err)
	}

	p.log.InfoContext(ctx, "Timetable fetch success", "date", events.Date(), "location", loc.String())
	return events, nil
}

func (p *HTTPProvider) parse(day time.Time, body []byte) (*prayer.DayEvents, error) {
	var resp timingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Timings == nil {
		return nil, fmt.Errorf("response has no timings")
	}

	times := make(map[prayer.EventName]time.Time, prayer.NumEvents)
	for name, field := range timingFields {
		raw, ok := resp.Data.Timings[field]
		if !ok {
			return nil, fmt.Errorf("timings missing %s", field)
		}
		hour, minute, err := parseClock(raw)
		if err != nil {
			return nil, fmt.Errorf("timing %s: %w", field, err)
		}
		times[name] = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.tz)
	}

	return prayer.NewDayEvents(day.Format(DateLayout), times)
}

// parseClock reads "HH:MM", ignoring a trailing " (TZ)" annotation
func parseClock(s string) (hour, minute int, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("empty time")
	}
	t, err := time.Parse("15:04", fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
