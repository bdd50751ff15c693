package post

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/nstogner/listingwriter/pkg/domain"
)

// DefaultIntroPrompt asks for titles, a greeting and a teaser of the listing.
const DefaultIntroPrompt = `You are a veteran licensed real-estate agent who writes a popular Naver blog.
Using the details below, write the opening section of a blog post. Write in Korean.

[Listing]
- Location: {{.Location}}
- Price: {{.Price}}
- Features: {{.Features}}

[Requirements]
1. Suggest 3 catchy titles that make readers want to click.
2. Start with a warm greeting that mentions the weather or the season.
3. Summarise the key facts of the listing so readers look forward to the photos.
4. Do not describe any photos yet.`

// DefaultImagePrompt asks for a short description of one interior photo.
const DefaultImagePrompt = `This photo is one of the interior photos of a property listing in {{.Location}}.
Look at the photo and write 3 to 4 natural sentences for the body of the blog post. Write in Korean.

[Requirements]
1. Identify which room it is: living room, kitchen, master bedroom, bathroom or entrance.
2. Praise the specific strengths visible in the photo (space, cleanliness, daylight, storage and so on).
3. Use a very friendly, polite conversational tone.`

// DefaultOutroPrompt asks for the closing section and hashtags.
const DefaultOutroPrompt = `Write the closing section of the blog post. Write in Korean.

[Listing]
- Location: {{.Location}}

[Requirements]
1. A trustworthy line inviting readers to get in touch any time.
2. Include the sentence "On mobile, tap here to call right away."
3. Recommend 10 hashtags that search well.`

// PromptSet holds the raw template text for each stage. Empty fields use the
// defaults.
type PromptSet struct {
	Intro string `yaml:"intro"`
	Image string `yaml:"image"`
	Outro string `yaml:"outro"`
}

// Prompts renders stage prompts from a Listing.
type Prompts struct {
	intro *template.Template
	image *template.Template
	outro *template.Template
}

// NewPrompts parses set, falling back to the defaults for empty entries.
func NewPrompts(set PromptSet) (*Prompts, error) {
	var p Prompts
	var err error
	if p.intro, err = parse("intro", set.Intro, DefaultIntroPrompt); err != nil {
		return nil, err
	}
	if p.image, err = parse("image", set.Image, DefaultImagePrompt); err != nil {
		return nil, err
	}
	if p.outro, err = parse("outro", set.Outro, DefaultOutroPrompt); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *Prompts {
	p, err := NewPrompts(PromptSet{})
	if err != nil {
		panic(err)
	}
	return p
}

func parse(name, text, def string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = def
	}
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt: %w", name, err)
	}
	return t, nil
}

// Intro renders the intro prompt.
func (p *Prompts) Intro(l domain.Listing) (string, error) { return render(p.intro, l) }

// Image renders the per-image prompt.
func (p *Prompts) Image(l domain.Listing) (string, error) { return render(p.image, l) }

// Outro renders the outro prompt.
func (p *Prompts) Outro(l domain.Listing) (string, error) { return render(p.outro, l) }

func render(t *template.Template, l domain.Listing) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, l); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return sb.String(), nil
}
