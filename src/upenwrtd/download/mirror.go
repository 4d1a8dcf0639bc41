package download

import "strings"

// Mirror rewrites URLs starting with URLPrefix to MirrorURL.
type Mirror struct {
	Name      string `mapstructure:"name"`
	URLPrefix string `mapstructure:"url_prefix"`
	MirrorURL string `mapstructure:"mirror_url"`
}

// MirrorResolver resolves download URLs through configured mirrors.
// The original URL stays the cache identity; only the transfer goes to the mirror.
type MirrorResolver struct {
	mirrors []Mirror
}

// NewMirrorResolver creates a resolver trying mirrors in the given order
func NewMirrorResolver(mirrors []Mirror) *MirrorResolver {
	return &MirrorResolver{mirrors: append([]Mirror(nil), mirrors...)}
}

// ResolveURL returns the mirrored URL, or the original one when no prefix matches.
func (r *MirrorResolver) ResolveURL(originalURL string) string {
	if r == nil {
		return originalURL
	}
	for _, m := range r.mirrors {
		if m.URLPrefix == "" || m.MirrorURL == "" {
			continue
		}
		if strings.HasPrefix(originalURL, m.URLPrefix) {
			mirrored := m.MirrorURL + strings.TrimPrefix(originalURL, m.URLPrefix)
			log.Debug("Mirror URL resolved",
				"original", originalURL,
				"mirror", m.Name,
				"resolved", mirrored)
			return mirrored
		}
	}
	return originalURL
}

// HasMirrors returns true if any mirrors are configured
func (r *MirrorResolver) HasMirrors() bool {
	return r != nil && len(r.mirrors) > 0
}
