package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoImages    = errors.New("painting has no images")
	ErrNoPaintings = errors.New("catalog has no paintings")
	ErrNoAnswers   = errors.New("painting has no answers")
)

// DefaultImageWidth is the display width of every frame, in pixels.
const DefaultImageWidth = 800

type Image struct {
	URL   string
	Width int
	Final bool // last image of the painting; dwells longer
}

// Painting is immutable once built. Whether a team has solved it is
// tracked by that team's coordinator, not here.
type Painting struct {
	Title   string
	Images  []Image
	answers map[string]struct{}
}

// PaintingSpec is the catalog file form of a painting: images are found
// under Dir in the asset map.
type PaintingSpec struct {
	Title   string   `yaml:"title"`
	Answers []string `yaml:"answers"`
	Dir     string   `yaml:"dir"`
}

// Catalog is the ordered gallery every team walks through, plus the
// image each frame should preload.
type Catalog struct {
	Paintings []*Painting
	preload   map[string]string
}

// NewPainting builds a painting whose accepted answers are each base
// answer plus its "bad" title variant. The last image is flagged Final.
func NewPainting(title string, baseAnswers []string, images []Image) (*Painting, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%q: %w", title, ErrNoImages)
	}
	if len(baseAnswers) == 0 {
		return nil, fmt.Errorf("%q: %w", title, ErrNoAnswers)
	}

	p := &Painting{
		Title:   title,
		Images:  make([]Image, len(images)),
		answers: make(map[string]struct{}, 2*len(baseAnswers)),
	}
	copy(p.Images, images)
	for i := range p.Images {
		p.Images[i].Final = i == len(p.Images)-1
	}

	for _, a := range baseAnswers {
		canon := Canonicalize(a)
		if canon == "" {
			continue
		}
		p.answers[canon] = struct{}{}
		p.answers[badVariant(canon)] = struct{}{}
	}
	if len(p.answers) == 0 {
		return nil, fmt.Errorf("%q: %w", title, ErrNoAnswers)
	}
	return p, nil
}

// Accepts reports whether canonical is one of the painting's answers.
// The argument must already be canonicalized.
func (p *Painting) Accepts(canonical string) bool {
	_, ok := p.answers[canonical]
	return ok
}

func (p *Painting) FinalImage() Image {
	return p.Images[len(p.Images)-1]
}

// BuildCatalog resolves each spec's images from assets (logical name ->
// URL). A painting's images are the keys "<dir>/*.png" in lexicographic
// order.
func BuildCatalog(specs []PaintingSpec, assets map[string]string, width int) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, ErrNoPaintings
	}
	if width <= 0 {
		width = DefaultImageWidth
	}

	paintings := make([]*Painting, 0, len(specs))
	for _, s := range specs {
		prefix := s.Dir + "/"
		var names []string
		for name := range assets {
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".png") {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		images := make([]Image, 0, len(names))
		for _, name := range names {
			images = append(images, Image{URL: assets[name], Width: width})
		}

		p, err := NewPainting(s.Title, s.Answers, images)
		if err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}
		paintings = append(paintings, p)
	}
	return NewCatalog(paintings)
}

// NewCatalog wraps already-built paintings and computes the preload map.
func NewCatalog(paintings []*Painting) (*Catalog, error) {
	if len(paintings) == 0 {
		return nil, ErrNoPaintings
	}
	c := &Catalog{Paintings: paintings}
	c.preload = buildPreload(paintings)
	return c, nil
}

// Preload returns the URL the client should fetch while url is on screen.
func (c *Catalog) Preload(url string) string {
	return c.preload[url]
}

func (c *Catalog) Len() int { return len(c.Paintings) }
