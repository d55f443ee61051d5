package librivox

import (
	"math/rand"
	"net/http"
	"net/url"
)

// The catalog endpoint only answers XHR-looking requests.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.7; rv:11.0) Gecko/20100101 Firefox/11.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:22.0) Gecko/20100101 Firefox/22.0",
	"Mozilla/5.0 (Windows NT 6.1; rv:11.0) Gecko/20100101 Firefox/11.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_7_4) AppleWebKit/536.5 (KHTML, like Gecko) Chrome/19.0.1084.46 Safari/536.5",
	"Mozilla/5.0 (Windows; Windows NT 6.1) AppleWebKit/536.5 (KHTML, like Gecko) Chrome/19.0.1084.46 Safari/536.5",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_13) AppleWebKit/604.1.38 (KHTML, like Gecko) Version/11.0 Safari/604.1.38",
}

func scrapeHeaders(baseURL string) http.Header {
	h := http.Header{}
	h.Set("Referer", baseURL+"/search")
	if parsed, err := url.Parse(baseURL); err == nil && parsed.Host != "" {
		h.Set("Host", parsed.Host)
	}
	h.Set("Accept", "*/*")
	h.Set("Connection", "keep-alive")
	h.Set("Accept-Language", "en-us")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	return h
}
