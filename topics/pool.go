package topics

import (
	"math/rand"
	"strings"
	"time"
)

const (
	// MinLiveTopics is the live-signal threshold below which fallback topics are mixed in.
	MinLiveTopics = 5
	// TargetPoolSize is the pool size the supplement aims for.
	TargetPoolSize = 10
	// MinSupplement is the smallest supplement ever taken.
	MinSupplement = 5
	// MaxExclusions bounds the exclusion list rendered into prompts.
	MaxExclusions = 30
)

// FallbackTopics is the curated list used when the feeds are too quiet.
var FallbackTopics = []string{
	"Indian Space Research Organisation (ISRO) latest mission updates",
	"UPI digital payments revolution in India",
	"Indian Premier League cricket season highlights",
	"Bollywood box office trends and upcoming releases",
	"Indian startup ecosystem funding and growth",
	"Monsoon season impact on Indian agriculture",
	"Ancient Indian mythology retold for modern audiences",
	"Indian street food culture across different states",
	"Indian classical music meets contemporary fusion",
	"Wildlife conservation efforts in Indian national parks",
	"Indian women breaking barriers in tech and business",
	"Festival celebrations across India — traditions and stories",
	"Indian railway journeys — untold stories from the tracks",
	"Rise of Indian gaming and esports community",
	"Traditional Ayurveda meets modern wellness trends",
}

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewRandomShuffler returns the production shuffler.
func NewRandomShuffler() Shuffler {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Pool is the topic material handed to the Research stage.
type Pool struct {
	News           []string
	Trends         []string
	Exclusions     []string
	Supplement     []string
	TopicsAnalyzed int
}

// Build merges the two feed extractions, tops them up from FallbackTopics
// when live signal is sparse and folds in the exclusion list.
func Build(news, trends, exclude []string, s Shuffler) Pool {
	p := Pool{
		News:       append([]string(nil), news...),
		Trends:     append([]string(nil), trends...),
		Exclusions: NormalizeExclusions(exclude),
	}
	if p.News == nil {
		p.News = []string{}
	}
	if p.Trends == nil {
		p.Trends = []string{}
	}

	live := len(news) + len(trends)
	if live < MinLiveTopics {
		needed := max(TargetPoolSize-live, MinSupplement)
		p.Supplement = Supplement(needed, s)
		p.News = append(p.News, p.Supplement...)
	}

	p.TopicsAnalyzed = len(p.News) + len(p.Trends)
	return p
}

// Supplement returns n fallback topics drawn from a shuffled copy of FallbackTopics.
func Supplement(n int, s Shuffler) []string {
	shuffled := append([]string(nil), FallbackTopics...)
	if s == nil {
		s = NewRandomShuffler()
	}
	s.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	n = min(max(n, 0), len(shuffled))
	return shuffled[:n]
}

// NormalizeExclusions trims, drops blanks, removes case-insensitive duplicates
// and keeps at most MaxExclusions entries, preserving order.
func NormalizeExclusions(exclude []string) []string {
	out := make([]string, 0, min(len(exclude), MaxExclusions))
	seen := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if len(out) >= MaxExclusions {
			break
		}
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Sources returns the raw pool: news (with any supplement) followed by trends.
func (p Pool) Sources() []string {
	out := make([]string, 0, len(p.News)+len(p.Trends))
	out = append(out, p.News...)
	return append(out, p.Trends...)
}

// Overlaps reports whether topic matches an exclusion case-insensitively,
// either exactly or as a substring in either direction.
func (p Pool) Overlaps(topic string) bool {
	t := strings.ToLower(strings.TrimSpace(topic))
	if t == "" {
		return false
	}
	for _, e := range p.Exclusions {
		x := strings.ToLower(e)
		if t == x || strings.Contains(t, x) || strings.Contains(x, t) {
			return true
		}
	}
	return false
}
