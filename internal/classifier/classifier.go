
package classifier

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"bookmark-cataloger/internal/models"
)

// Input is what the categorizer looks at for one page.
type Input struct {
	URL         string
	Title       string
	Description string
	Tags        []string
}

// Result is the derived classification of one page.
type Result struct {
	Tags     []string
	Category string
}

// Classifier turns page metadata into tags and a category.
type Classifier struct {
	maxTags int
}

func New() *Classifier { return &Classifier{maxTags: DefaultMaxTags} }

// Classify derives tags from title and description, then the category.
func (c *Classifier) Classify(rawURL string, meta models.PageMeta) Result {
	tags := ExtractTags(meta.Title+" "+meta.Description, c.maxTags)
	return Result{
		Tags: tags,
		Category: Categorize(Input{
			URL:         rawURL,
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        tags,
		}),
	}
}

type hostRule struct {
	re    *regexp.Regexp
	label string
}

var hostRules = []hostRule{
	{regexp.MustCompile(`github\.com$`), "Code"},
	{regexp.MustCompile(`stackoverflow\.com$`), "QA"},
	{regexp.MustCompile(`wikipedia\.org$`), "Reference"},
	{regexp.MustCompile(`(^|\.)arxiv\.org$`), "Research"},
	{regexp.MustCompile(`medium\.com$`), "Blogs"},
	{regexp.MustCompile(`(youtube\.com|youtu\.be|vimeo\.com)$`), "Video"},
	{regexp.MustCompile(`(x\.com|twitter\.com)$`), "Social"},
	{regexp.MustCompile(`linkedin\.com$`), "Career"},
	{regexp.MustCompile(`reddit\.com$`), "Communities"},
	{regexp.MustCompile(`(docs\.|developer\.|dev\.)`), "Docs"},
}

// keywordRule matches when any keyword is a substring of the lowercased
// title+description or equals a tag, or when pattern matches the text.
type keywordRule struct {
	name     string
	pattern  *regexp.Regexp
	keywords []string
}

// Order matters: the first matching rule wins.
var keywordRules = []keywordRule{
	{name: "AI/ML", pattern: regexp.MustCompile(`(?i)machine learning|deep learning|neural|llm|gpt|transformer|nlp|cv\b|classification|regression`), keywords: []string{"ml", "ai"}},
	{name: "Programming", keywords: []string{"javascript", "typescript", "python", "go", "rust", "java", "kotlin", "php", "ruby", "c++", "c#", "swift", "dart", "node", "react", "vue", "svelte", "angular", "next", "nuxt"}},
	{name: "DevOps", keywords: []string{"docker", "kubernetes", "k8s", "terraform", "ansible", "ci", "cd", "jenkins", "github actions", "monitoring", "prometheus", "grafana"}},
	{name: "Security", keywords: []string{"security", "oauth", "jwt", "xss", "csrf", "encryption", "vulnerability", "penetration"}},
	{name: "Cloud", keywords: []string{"aws", "gcp", "azure", "cloudflare", "serverless", "lambda", "cloud run"}},
	{name: "Data", keywords: []string{"sql", "postgres", "mysql", "mongodb", "clickhouse", "data warehouse", "etl", "airflow", "spark", "hadoop"}},
	{name: "Design", keywords: []string{"figma", "ux", "ui", "design", "typography", "color", "interface"}},
	{name: "Business", keywords: []string{"startup", "marketing", "product", "growth", "sales", "pricing"}},
	{name: "Crypto", keywords: []string{"crypto", "blockchain", "ethereum", "defi", "nft"}},
	{name: "Mobile", keywords: []string{"android", "ios", "react native", "flutter", "swiftui"}},
	{name: "Testing", keywords: []string{"test", "testing", "jest", "cypress", "playwright", "unit", "e2e"}},
	{name: "Docs", keywords: []string{"documentation", "api reference", "reference", "guide", "manual"}},
	{name: "Research", keywords: []string{"paper", "arxiv", "doi", "research", "study"}},
}

// Categorize assigns exactly one non-empty category label. Resolution:
// hostname table, keyword rules, first tag, hostname, "Misc".
func Categorize(in Input) string {
	text := strings.ToLower(in.Title + " " + in.Description)
	host := Hostname(in.URL)

	if host != "" {
		for _, r := range hostRules {
			if r.re.MatchString(host) {
				return r.label
			}
		}
	}

	hasTag := func(k string) bool {
		for _, t := range in.Tags {
			if t == k {
				return true
			}
		}
		return false
	}
	for _, r := range keywordRules {
		if r.pattern != nil && r.pattern.MatchString(text) {
			return r.name
		}
		for _, k := range r.keywords {
			if strings.Contains(text, k) || hasTag(k) {
				return r.name
			}
		}
	}

	if len(in.Tags) > 0 && in.Tags[0] != "" {
		return capitalize(in.Tags[0])
	}
	if host != "" {
		return strings.TrimPrefix(host, "www.")
	}
	return "Misc"
}

// Hostname returns the lowercased host of rawURL without port, or "" when
// rawURL does not parse to an absolute URL with a host.
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
