package crawl

import (
	"log/slog"
	"net/url"
	"sync"
)

// headerProfile is a coherent browser/OS fingerprint. User agent, platform
// hint, and accept headers must stay consistent within one identity.
type headerProfile struct {
	UserAgent      string
	Platform       string
	Accept         string
	AcceptLanguage string
}

var headerProfiles = []headerProfile{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Platform:       `"Windows"`,
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.9,ar;q=0.8",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		Platform:       `"macOS"`,
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage: "en-GB,en;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Platform:       `"Linux"`,
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.8",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
		Platform:       `"macOS"`,
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.5",
	},
}

// Identity is one rotating bundle of header and proxy material. It is
// retired once its error score crosses the pool's threshold or its usage
// allowance runs out.
type Identity struct {
	id         int
	profile    headerProfile
	proxy      *url.URL
	uses       int
	errorScore int
	retired    bool
}

// Headers returns the request headers this identity presents.
// Accept-Encoding is left to the transport, which negotiates gzip and
// decompresses the response body itself.
func (id *Identity) Headers() map[string]string {
	return map[string]string{
		"User-Agent":         id.profile.UserAgent,
		"Accept":             id.profile.Accept,
		"Accept-Language":    id.profile.AcceptLanguage,
		"Sec-Ch-Ua-Platform": id.profile.Platform,
		"Connection":         "keep-alive",
	}
}

// Proxy returns the identity-bound proxy endpoint, or nil.
func (id *Identity) Proxy() *url.URL {
	return id.proxy
}

// IdentityPool hands out identities round-robin and retires the ones that
// attract errors. The pool mints a fresh identity whenever rotation runs
// dry, so Acquire never fails.
type IdentityPool struct {
	mu          sync.Mutex
	live        []*Identity
	nextID      int
	rotate      int
	maxUses     int
	errorBudget int
	proxies     []*url.URL
	nextProxy   int
	metrics     *Metrics
}

// NewIdentityPool builds a pool cycling the built-in header profiles over
// the given proxy endpoints. Unparseable proxy URLs are skipped.
func NewIdentityPool(proxyURLs []string, maxUses, errorBudget int, metrics *Metrics) *IdentityPool {
	p := &IdentityPool{
		maxUses:     maxUses,
		errorBudget: errorBudget,
		metrics:     metrics,
	}
	for _, raw := range proxyURLs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			slog.Warn("skipping unusable proxy url", slog.String("proxy", raw))
			continue
		}
		p.proxies = append(p.proxies, parsed)
	}

	// Seed rotation so consecutive requests present different
	// fingerprints from the start.
	seed := len(headerProfiles)
	if len(p.proxies) > seed {
		seed = len(p.proxies)
	}
	for i := 0; i < seed; i++ {
		p.mintLocked()
	}
	return p
}

// Acquire returns a live identity and counts the use. Identities whose
// usage allowance ran out are retired on the way.
func (p *IdentityPool) Acquire() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.live) > 0 {
		p.rotate %= len(p.live)
		id := p.live[p.rotate]
		if id.uses >= p.maxUses {
			p.retireLocked(id)
			continue
		}
		id.uses++
		p.rotate++
		return id
	}

	id := p.mintLocked()
	id.uses++
	return id
}

// ReportError raises an identity's error score, retiring it when the
// score crosses the pool's budget.
func (p *IdentityPool) ReportError(id *Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == nil || id.retired {
		return
	}
	id.errorScore++
	if id.errorScore >= p.errorBudget {
		p.retireLocked(id)
	}
}

// Retire removes an identity from rotation immediately. Used on hard
// blocks, where reusing the identity would burn further requests.
func (p *IdentityPool) Retire(id *Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == nil || id.retired {
		return
	}
	p.retireLocked(id)
}

// LiveCount reports how many identities remain in rotation.
func (p *IdentityPool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *IdentityPool) retireLocked(id *Identity) {
	id.retired = true
	for i, candidate := range p.live {
		if candidate == id {
			p.live = append(p.live[:i], p.live[i+1:]...)
			break
		}
	}
	p.metrics.IncIdentityRetired()
	slog.Debug("identity retired",
		slog.Int("identity", id.id),
		slog.Int("uses", id.uses),
		slog.Int("error_score", id.errorScore),
	)
}

func (p *IdentityPool) mintLocked() *Identity {
	profile := headerProfiles[p.nextID%len(headerProfiles)]
	id := &Identity{
		id:      p.nextID,
		profile: profile,
	}
	if len(p.proxies) > 0 {
		id.proxy = p.proxies[p.nextProxy%len(p.proxies)]
		p.nextProxy++
	}
	p.nextID++
	p.live = append(p.live, id)
	return id
}
