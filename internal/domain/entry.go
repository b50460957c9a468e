package domain

import "time"

// Kind distinguishes a single point of interest from a recorded route.
type Kind string

const (
	// KindMarker is an entry without a route: a single point with notes or a photo.
	KindMarker Kind = "marker"
	// KindRoute is an entry whose path holds at least two points.
	KindRoute Kind = "route"
)

// Owner identifies who recorded an entry. It is used for filtering only,
// never for authentication.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// NearbyPlace is a point of interest returned by a nearby-places lookup.
type NearbyPlace struct {
	PlaceID  string      `json:"placeId"`
	Name     string      `json:"name"`
	Vicinity string      `json:"vicinity,omitempty"`
	Types    []string    `json:"types,omitempty"`
	Location *Coordinate `json:"location,omitempty"`
	Rating   *float64    `json:"rating,omitempty"`
}

// LocationDetails is the enrichment attached to an anchor.
// Every field is optional: absence means the lookup failed or was skipped.
type LocationDetails struct {
	Address      *string       `json:"address,omitempty"`
	PlaceID      *string       `json:"placeId,omitempty"`
	LocationType *string       `json:"locationType,omitempty"`
	Types        []string      `json:"types,omitempty"`
	NearbyPlaces []NearbyPlace `json:"nearbyPlaces,omitempty"`
}

// IsEmpty reports whether no enrichment data is present.
func (d LocationDetails) IsEmpty() bool {
	return d.Address == nil && d.PlaceID == nil && d.LocationType == nil &&
		len(d.Types) == 0 && len(d.NearbyPlaces) == 0
}

// Anchor is the primary reference point of an entry and its enrichment.
type Anchor struct {
	Coordinate
	Details LocationDetails `json:"details"`
}

// Photo references an image stored by the media collaborator.
// PublicID is what the collaborator needs to release it.
type Photo struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
}

// Entry is the persisted journal record: a marker (empty path) or a route.
// ID and CreatedAt are assigned by the storage backend and never change.
type Entry struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Owner     Owner       `json:"owner"`
	Anchor    Anchor      `json:"anchor"`
	Path      []PathPoint `json:"path"`
	Notes     string      `json:"notes,omitempty"`
	Emoji     string      `json:"emoji,omitempty"`
	Photo     *Photo      `json:"photo,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Kind reports whether the entry is a route or a marker.
func (e Entry) Kind() Kind {
	if len(e.Path) >= 2 {
		return KindRoute
	}
	return KindMarker
}

// Clone returns a deep copy so callers cannot mutate a stored entry through
// shared slices or pointers.
func (e Entry) Clone() Entry {
	c := e
	c.Path = append([]PathPoint{}, e.Path...)
	for i, p := range c.Path {
		if p.Accuracy != nil {
			acc := *p.Accuracy
			c.Path[i].Accuracy = &acc
		}
	}
	c.Anchor.Details = e.Anchor.Details.clone()
	if e.Photo != nil {
		ph := *e.Photo
		c.Photo = &ph
	}
	return c
}

func (d LocationDetails) clone() LocationDetails {
	c := LocationDetails{
		Address:      cloneString(d.Address),
		PlaceID:      cloneString(d.PlaceID),
		LocationType: cloneString(d.LocationType),
	}
	if d.Types != nil {
		c.Types = append([]string{}, d.Types...)
	}
	for _, p := range d.NearbyPlaces {
		np := p
		if p.Types != nil {
			np.Types = append([]string{}, p.Types...)
		}
		if p.Location != nil {
			loc := *p.Location
			np.Location = &loc
		}
		if p.Rating != nil {
			r := *p.Rating
			np.Rating = &r
		}
		c.NearbyPlaces = append(c.NearbyPlaces, np)
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// EntryPatch carries the mutable fields of an entry. Nil fields are left
// unchanged. Anchor, path and server-assigned fields are never patched.
type EntryPatch struct {
	Title   *string
	Content *string
	Notes   *string
	Emoji   *string
}

// Apply returns a copy of e with the non-nil patch fields applied.
func (p EntryPatch) Apply(e Entry) Entry {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Emoji != nil {
		e.Emoji = *p.Emoji
	}
	return e
}

// Stats is the on-demand summary of an entry's path.
type Stats struct {
	Kind            Kind    `json:"kind"`
	PointCount      int     `json:"pointCount"`
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
}
