package police

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/varoOP/crimedb/internal/domain"
)

// apiCrime is one element of the crimes-street response. Every field is
// optional and tolerant of the wrong JSON type.
type apiCrime struct {
	ID       looseString `json:"id"`
	Category looseString `json:"category"`
	Month    looseString `json:"month"`
	Location *struct {
		Latitude  looseFloat `json:"latitude"`
		Longitude looseFloat `json:"longitude"`
		Street    *struct {
			Name looseString `json:"name"`
		} `json:"street"`
	} `json:"location"`
}

func (c apiCrime) incident() domain.Incident {
	i := domain.Incident{
		ID:       string(c.ID),
		Category: string(c.Category),
		Month:    string(c.Month),
	}
	if c.Location != nil {
		i.Lat = float64(c.Location.Latitude)
		i.Lng = float64(c.Location.Longitude)
		if c.Location.Street != nil {
			i.StreetName = string(c.Location.Street.Name)
		}
	}
	return i
}

// decodeCrimes maps a crimes-street body to incidents, one per element.
// An element that cannot be decoded at all becomes an empty incident, which
// the store later skips as malformed.
func decodeCrimes(body []byte) ([]domain.Incident, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "response is not a JSON array")
	}

	incidents := make([]domain.Incident, 0, len(raw))
	for _, r := range raw {
		var c apiCrime
		if err := json.Unmarshal(r, &c); err != nil {
			incidents = append(incidents, domain.Incident{})
			continue
		}
		incidents = append(incidents, c.incident())
	}

	return incidents, nil
}

// looseString accepts strings and numbers; anything else decodes as "".
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*s = ""
			return nil
		}
		*s = looseString(v)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*s = looseString(b)
	default:
		*s = ""
	}
	return nil
}

// looseFloat accepts numbers and numeric strings. Anything else, including
// NaN and infinities, decodes as 0.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*f = 0
			return nil
		}
		b = []byte(v)
	}

	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = 0
		return nil
	}
	*f = looseFloat(v)
	return nil
}
