package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const cacheFile = "trip_colors.json"

// NoTripColorID is the gray used for events that belong to no trip.
const NoTripColorID = "8"

type TripState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// Cache remembers which event color each trip got, so a trip keeps its
// color between syncs. When every color is taken the least recently used
// trip gives its color up.
type Cache struct {
	Path  string
	Trips map[string]*TripState `json:"trips"`
	now   func() time.Time
	dirty bool
}

func CachePath(dir string) string {
	return filepath.Join(dir, cacheFile)
}

// NewCache loads the cache at path if it exists. An empty path keeps the
// cache in memory.
func NewCache(path string) (*Cache, error) {
	c := &Cache{Path: path, Trips: make(map[string]*TripState), now: time.Now}
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(&c.Trips)
}

func (c *Cache) Save() error {
	if !c.dirty || c.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = json.NewEncoder(f).Encode(c.Trips)
	if err == nil {
		c.dirty = false
	}
	return err
}

// ColorID returns the event color for a trip. A parseable hex color wins;
// otherwise the trip gets a cached slot.
func (c *Cache) ColorID(tripID, hex string) string {
	if tripID == "" {
		return NoTripColorID
	}
	if id := GoogleColorID(hex); id != "" {
		return id
	}
	if state, ok := c.Trips[tripID]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(tripID)
}

// Forget releases the slot of a deleted trip.
func (c *Cache) Forget(tripID string) {
	if _, ok := c.Trips[tripID]; ok {
		delete(c.Trips, tripID)
		c.dirty = true
	}
}

func (c *Cache) assign(tripID string) string {
	used := make(map[string]bool)
	for _, s := range c.Trips {
		used[s.ColorID] = true
	}
	for i := 1; i <= len(googleEventColors); i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Trips[tripID] = &TripState{ColorID: id, LastUsed: c.now()}
			c.dirty = true
			return id
		}
	}

	var oldest string
	var oldestTime time.Time
	for id, s := range c.Trips {
		if oldest == "" || s.LastUsed.Before(oldestTime) {
			oldest, oldestTime = id, s.LastUsed
		}
	}
	recycled := c.Trips[oldest].ColorID
	delete(c.Trips, oldest)
	c.Trips[tripID] = &TripState{ColorID: recycled, LastUsed: c.now()}
	c.dirty = true
	return recycled
}
