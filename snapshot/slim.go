package snapshot

import (
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// slimExcluded implements the slimDOM pruning policy: scripts and the
// common head noise that contributes nothing to visual replay.
func (s *Serializer) slimExcluded(el *dom.Node) bool {
	o := s.opts.SlimDOM
	tag := el.Tag()

	if o.Script {
		if tag == "script" {
			return true
		}
		if tag == "link" {
			rel, _ := el.GetAttribute("rel")
			as, _ := el.GetAttribute("as")
			if strings.EqualFold(rel, "preload") && strings.EqualFold(as, "script") {
				return true
			}
			if strings.EqualFold(rel, "prefetch") {
				href, _ := el.GetAttribute("href")
				if strings.HasSuffix(href, ".js") {
					return true
				}
			}
		}
	}

	if o.HeadFavicon && tag == "link" {
		rel, _ := el.GetAttribute("rel")
		switch strings.ToLower(rel) {
		case "shortcut icon", "icon", "apple-touch-icon":
			return true
		}
	}

	if tag == "meta" {
		name, _ := el.GetAttribute("name")
		name = strings.ToLower(name)
		property, _ := el.GetAttribute("property")
		property = strings.ToLower(property)

		if o.HeadMetaSocial {
			if strings.HasPrefix(property, "og:") || strings.HasPrefix(property, "twitter:") ||
				strings.HasPrefix(property, "fb:") || strings.HasPrefix(name, "twitter:") {
				return true
			}
		}
		if o.HeadMetaRobots && (name == "robots" || name == "googlebot" || name == "bingbot") {
			return true
		}
		if o.HeadMetaHTTPEquiv && el.HasAttribute("http-equiv") {
			return true
		}
		if o.HeadMetaVerification {
			switch name {
			case "google-site-verification", "yandex-verification",
				"csrf-token", "p:domain_verify", "verify-v1", "verification",
				"shopify-checkout-api-token":
				return true
			}
		}
		if o.HeadMetaAuthorship {
			switch name {
			case "author", "generator", "framework", "publisher", "progid":
				return true
			}
			if strings.HasPrefix(property, "article:") || strings.HasPrefix(property, "product:") {
				return true
			}
		}
		if o.HeadMetaDescKeywords && (name == "description" || name == "keywords") {
			return true
		}
	}

	if o.HeadFavicon && tag == "link" {
		rel, _ := el.GetAttribute("rel")
		if strings.EqualFold(rel, "manifest") {
			return true
		}
	}

	return false
}

// SlimKeepsTitleMutations reports whether <title> text mutations pass
// the policy (pruned only at the 'all' level).
func (s *Serializer) SlimKeepsTitleMutations() bool {
	return !s.opts.SlimDOM.HeadTitleMutations
}

// SlimExcludesNode is the exported check used by the mutation buffer
// for nodes added after the initial snapshot.
func (s *Serializer) SlimExcludesNode(n *dom.Node) bool {
	switch n.Type() {
	case dom.ElementNode:
		return s.slimExcluded(n)
	case dom.CommentNode:
		return s.opts.SlimDOM.Comment
	}
	return false
}
