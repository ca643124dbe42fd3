package crawl

import (
	"testing"
)

func TestIdentityPoolRotates(t *testing.T) {
	p := NewIdentityPool(nil, 100, 3, NewMetrics())

	first := p.Acquire()
	second := p.Acquire()
	if first == second {
		t.Fatalf("consecutive acquires should rotate identities")
	}
	if first.Headers()["User-Agent"] == second.Headers()["User-Agent"] {
		t.Fatalf("rotated identities should present different user agents")
	}
}

func TestIdentityPoolRetiresOnErrorBudget(t *testing.T) {
	p := NewIdentityPool(nil, 100, 2, NewMetrics())

	id := p.Acquire()
	p.ReportError(id)
	if id.retired {
		t.Fatalf("one error should not retire the identity")
	}
	p.ReportError(id)
	if !id.retired {
		t.Fatalf("identity should retire at the error budget")
	}

	replacement := p.Acquire()
	if replacement == id {
		t.Fatalf("retired identity must not be reissued")
	}
}

func TestIdentityPoolRetiresOnUsageAllowance(t *testing.T) {
	p := NewIdentityPool(nil, 2, 3, NewMetrics())

	seen := make(map[*Identity]int)
	for i := 0; i < 20; i++ {
		id := p.Acquire()
		seen[id]++
	}
	for id, uses := range seen {
		if uses > 2 {
			t.Fatalf("identity %d handed out %d times, allowance is 2", id.id, uses)
		}
	}
}

func TestIdentityPoolHardRetire(t *testing.T) {
	p := NewIdentityPool(nil, 100, 3, NewMetrics())

	id := p.Acquire()
	before := p.LiveCount()
	p.Retire(id)
	if !id.retired {
		t.Fatalf("hard retire should take effect immediately")
	}
	if got := p.LiveCount(); got != before-1 {
		t.Fatalf("live count = %d, want %d", got, before-1)
	}

	fresh := p.Acquire()
	if fresh == nil || fresh == id {
		t.Fatalf("pool should mint a fresh identity after retirement")
	}
}

func TestIdentityPoolBindsProxies(t *testing.T) {
	p := NewIdentityPool([]string{"http://proxy-a:8080", "http://proxy-b:8080", "not a proxy"}, 100, 3, NewMetrics())

	first := p.Acquire()
	second := p.Acquire()
	if first.Proxy() == nil || second.Proxy() == nil {
		t.Fatalf("identities should carry a proxy when proxies are configured")
	}
	if first.Proxy().Host == second.Proxy().Host {
		t.Fatalf("proxies should cycle across identities")
	}
}

func TestIdentityHeadersCoherent(t *testing.T) {
	p := NewIdentityPool(nil, 100, 3, NewMetrics())

	id := p.Acquire()
	headers := id.Headers()
	for _, key := range []string{"User-Agent", "Accept", "Accept-Language", "Sec-Ch-Ua-Platform"} {
		if headers[key] == "" {
			t.Fatalf("header %s missing from identity", key)
		}
	}
	// Setting Accept-Encoding by hand would switch off the transport's
	// transparent gzip decompression.
	if _, ok := headers["Accept-Encoding"]; ok {
		t.Fatalf("identity must not set Accept-Encoding")
	}
}
