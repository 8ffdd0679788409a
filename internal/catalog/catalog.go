// Package catalog loads the asana catalog and builds the benefit vocabulary and
// the reverse index from benefit label to poses.
package catalog

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

// ErrCatalogUnavailable is returned when the backing store cannot be read.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// GenderAll is the wildcard gender that matches every requester.
const GenderAll = "all"

// Source returns raw catalog records.
type Source interface {
	ListAsanas(ctx context.Context) ([]store.Asana, error)
}

// Pose is an immutable catalog entry.
type Pose struct {
	ID                string   `json:"id"`
	Name              string   `json:"asana"`
	Age               string   `json:"age"`
	Gender            string   `json:"gender"`
	HealthBenefits    []string `json:"health_benefits"`
	PoseDirection     []string `json:"pose_direction"`
	Contraindications []string `json:"contraindications"`
	ImageURL          string   `json:"image_url,omitempty"`
}

// MinAge returns the minimum age threshold of the pose.
//
// An age that does not parse as an integer ("All", "",
// "12.5") is treated as 0, so the pose passes every age check. Catalog data
// relies on "All" meaning all ages.
func (p Pose) MinAge() int {
	n, err := strconv.Atoi(strings.TrimSpace(p.Age))
	if err != nil {
		return 0
	}
	return n
}

// AdmitsGender reports whether the pose targets gender or everyone.
func (p Pose) AdmitsGender(gender string) bool {
	g := strings.TrimSpace(p.Gender)
	return strings.EqualFold(g, GenderAll) || strings.EqualFold(g, strings.TrimSpace(gender))
}

// Catalog is the loaded pose catalog. It is never mutated after Build.
type Catalog struct {
	poses       []Pose
	vocabulary  []string
	index       map[string][]int
	fingerprint string
}

// Build constructs a catalog from raw records, preserving record order.
func Build(records []store.Asana) *Catalog {
	c := &Catalog{
		poses: make([]Pose, 0, len(records)),
		index: make(map[string][]int),
	}

	for i, r := range records {
		p := Pose{
			ID:                strings.TrimSpace(r.ID),
			Name:              r.Asana,
			Age:               r.Age,
			Gender:            r.Gender,
			HealthBenefits:    r.HealthBenefits,
			PoseDirection:     r.PoseDirection,
			Contraindications: r.Contraindications,
			ImageURL:          r.ImageURL,
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("%s#%d", p.Name, i)
		}
		if strings.TrimSpace(p.Gender) == "" {
			p.Gender = GenderAll
		}

		pos := len(c.poses)
		c.poses = append(c.poses, p)

		seen := make(map[string]bool, len(p.HealthBenefits))
		for _, benefit := range p.HealthBenefits {
			if benefit == "" || seen[benefit] {
				continue
			}
			seen[benefit] = true
			if _, ok := c.index[benefit]; !ok {
				c.vocabulary = append(c.vocabulary, benefit)
			}
			c.index[benefit] = append(c.index[benefit], pos)
		}
	}

	c.fingerprint = vocabularyFingerprint(c.vocabulary)
	return c
}

// Load reads every record from src and builds the catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	records, err := src.ListAsanas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return Build(records), nil
}

// Poses returns all poses in catalog order.
func (c *Catalog) Poses() []Pose { return c.poses }

// Len returns the number of poses.
func (c *Catalog) Len() int { return len(c.poses) }

// Vocabulary returns the distinct benefit labels in first-seen order.
func (c *Catalog) Vocabulary() []string { return c.vocabulary }

// Fingerprint identifies the vocabulary; equal vocabularies share a fingerprint.
func (c *Catalog) Fingerprint() string { return c.fingerprint }

// PosesFor returns the poses listing benefit, in catalog order.
func (c *Catalog) PosesFor(benefit string) []Pose {
	positions := c.index[benefit]
	out := make([]Pose, len(positions))
	for i, pos := range positions {
		out[i] = c.poses[pos]
	}
	return out
}

func vocabularyFingerprint(vocab []string) string {
	h := sha256.New()
	for _, v := range vocab {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
