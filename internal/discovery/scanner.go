package discovery

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

// ErrAlreadyWatching is returned when Start is called twice without Stop
var ErrAlreadyWatching = errors.New("scanner is already watching")

// Scanner discovers description-worthy images on a page
type Scanner struct {
	page Page

	mu          sync.Mutex
	unsubscribe func()
	seen        map[string]struct{}
}

// NewScanner creates a scanner for page
func NewScanner(page Page) *Scanner {
	return &Scanner{
		page: page,
		seen: make(map[string]struct{}),
	}
}

// ScanPage returns a record for every eligible image currently on the page
func (s *Scanner) ScanPage() []models.ImageRecord {
	vp := s.page.Viewport()
	elements := s.page.Images()

	records := make([]models.ImageRecord, 0, len(elements))
	skipped := make(map[Exclusion]int)
	for _, el := range elements {
		if reason := Check(el, vp); reason != Included {
			skipped[reason]++
			continue
		}
		rec := Record(el, vp)
		rec.Origin = s.page.Origin()
		records = append(records, rec)
	}

	s.mu.Lock()
	for _, r := range records {
		s.seen[r.ID] = struct{}{}
	}
	s.mu.Unlock()

	slog.Info("Scanned page",
		"images", len(elements),
		"eligible", len(records),
		"too_small", skipped[ExcludedSmall],
		"icons", skipped[ExcludedIcon],
		"hidden", skipped[ExcludedHidden],
		"offscreen", skipped[ExcludedOffscreen])
	return records
}

// Start watches the page and calls onNewImage once for every eligible image
// inserted after the call, including images nested in inserted subtrees
func (s *Scanner) Start(onNewImage func(models.ImageRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		return ErrAlreadyWatching
	}

	s.unsubscribe = s.page.Subscribe(func(inserted []Element) {
		vp := s.page.Viewport()
		for _, el := range inserted {
			if Check(el, vp) != Included {
				continue
			}
			if !s.markSeen(el.ID()) {
				continue
			}
			rec := Record(el, vp)
			rec.Origin = s.page.Origin()
			onNewImage(rec)
		}
	})

	slog.Debug("Watching page for new images")
	return nil
}

// Stop ends watching and forgets the images reported so far, so a later
// Start reports them again. It is safe to call when not watching.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		s.seen = make(map[string]struct{})
		slog.Debug("Stopped watching page")
	}
}

// Watching reports whether Start is active
func (s *Scanner) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribe != nil
}

func (s *Scanner) markSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}
