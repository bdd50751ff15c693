package domain

// Stage identifies which part of the blog post a section belongs to.
type Stage string

const (
	// StageIntro is the title suggestions and greeting.
	StageIntro Stage = "intro"
	// StageImage is the description of a single photo.
	StageImage Stage = "image"
	// StageOutro is the closing remarks and hashtags.
	StageOutro Stage = "outro"
)

// Section is the outcome of one generation call. Exactly one of Text and
// Error is set.
type Section struct {
	Stage     Stage  `json:"stage"`
	Index     int    `json:"index,omitempty"` // 1-based, image sections only
	ImageName string `json:"image_name,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether the section was generated successfully.
func (s Section) OK() bool { return s.Error == "" }

// Post is the full generated blog post. Sections that failed keep their
// error so partial results can still be shown.
type Post struct {
	Model  string    `json:"model"`
	Intro  Section   `json:"intro"`
	Images []Section `json:"images"`
	Outro  Section   `json:"outro"`
}
