// Package offline generates the service worker and web app manifest that
// let the shell pages load without a network connection.
package offline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"text/template"
)

const cachePrefix = "meufin-cache-"

// Manifest is the fixed list of URLs cached at install time.
type Manifest struct {
	CacheName string
	// Fallback is served for navigations that fail and have no cached match.
	Fallback string
	Assets   []string
}

// BuildManifest lists every file of static (served under prefix) plus the
// given page URLs. The cache name changes whenever an asset's content does,
// so a new deploy evicts the old cache on activation.
func BuildManifest(static fs.FS, prefix string, pages []string) (Manifest, error) {
	h := sha256.New()
	var assets []string
	err := fs.WalkDir(static, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		b, err := fs.ReadFile(static, p)
		if err != nil {
			return err
		}
		h.Write([]byte(p))
		h.Write(b)
		assets = append(assets, path.Join(prefix, p))
		return nil
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("walk static assets: %w", err)
	}
	sort.Strings(assets)

	urls := make([]string, 0, len(pages)+len(assets))
	urls = append(urls, pages...)
	urls = append(urls, assets...)

	fallback := "/"
	if len(pages) > 0 {
		fallback = pages[0]
	}
	return Manifest{
		CacheName: cachePrefix + hex.EncodeToString(h.Sum(nil))[:12],
		Fallback:  fallback,
		Assets:    urls,
	}, nil
}

var workerTemplate = template.Must(template.New("sw").Parse(`const CACHE_NAME = {{.CacheName}};
const FALLBACK = {{.Fallback}};
const ASSETS = {{.Assets}};

self.addEventListener("install", (event) => {
  event.waitUntil(
    caches.open(CACHE_NAME).then((cache) => cache.addAll(ASSETS)).then(() => self.skipWaiting())
  );
});

self.addEventListener("activate", (event) => {
  event.waitUntil(
    caches
      .keys()
      .then((keys) => Promise.all(keys.filter((key) => key !== CACHE_NAME).map((key) => caches.delete(key))))
      .then(() => self.clients.claim())
  );
});

self.addEventListener("fetch", (event) => {
  const req = event.request;
  if (req.method !== "GET") return;
  if (new URL(req.url).pathname.startsWith("/api/")) return;
  event.respondWith(
    caches.match(req).then(
      (cached) =>
        cached ||
        fetch(req)
          .then((response) => {
            if (response.ok && response.type === "basic") {
              const copy = response.clone();
              caches.open(CACHE_NAME).then((cache) => cache.put(req, copy));
            }
            return response;
          })
          .catch(() => (req.mode === "navigate" ? caches.match(FALLBACK) : undefined))
    )
  );
});
`))

type workerData struct {
	CacheName, Fallback, Assets string
}

// ServiceWorker renders the worker script for m.
func ServiceWorker(m Manifest) ([]byte, error) {
	quote := func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	}
	var data workerData
	var err error
	if data.CacheName, err = quote(m.CacheName); err != nil {
		return nil, err
	}
	if data.Fallback, err = quote(m.Fallback); err != nil {
		return nil, err
	}
	assets := m.Assets
	if assets == nil {
		assets = []string{}
	}
	if data.Assets, err = quote(assets); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := workerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render service worker: %w", err)
	}
	return buf.Bytes(), nil
}

// WebApp describes the installable app.
type WebApp struct {
	Name            string `json:"name"`
	ShortName       string `json:"short_name"`
	StartURL        string `json:"start_url"`
	Display         string `json:"display"`
	BackgroundColor string `json:"background_color"`
	ThemeColor      string `json:"theme_color"`
	Lang            string `json:"lang"`
	Icons           []Icon `json:"icons"`
}

type Icon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

func DefaultWebApp() WebApp {
	return WebApp{
		Name:            "Meufin - Finanças Pessoais",
		ShortName:       "Meufin",
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: "#f5f7fb",
		ThemeColor:      "#1f6feb",
		Lang:            "pt-BR",
		Icons: []Icon{
			{Src: "/static/img/icon.svg", Sizes: "any", Type: "image/svg+xml"},
		},
	}
}

// Handler serves the service worker and the web manifest.
type Handler struct {
	worker   []byte
	manifest []byte
}

func NewHandler(m Manifest, app WebApp) (*Handler, error) {
	worker, err := ServiceWorker(m)
	if err != nil {
		return nil, err
	}
	manifest, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode web manifest: %w", err)
	}
	return &Handler{worker: worker, manifest: manifest}, nil
}

func (h *Handler) ServeWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Service-Worker-Allowed", "/")
	_, _ = w.Write(h.worker)
}

func (h *Handler) ServeManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/manifest+json")
	_, _ = w.Write(h.manifest)
}

// IsNavigation reports whether r is a browser page load, which gets the
// shell page instead of a 404 when no route matches.
func IsNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
