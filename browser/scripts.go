package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Results of likeScript.
const (
	likeClicked = "liked"
	likeAlready = "already"
	likeMissing = "missing"
)

func jsString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// linksScript collects the href of every element matching selector.
func linksScript(selector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(a => a.href)`, jsString(selector))
}

// likeScript presses the first like button inside scope.
func likeScript(scope string) string {
	return fmt.Sprintf(`(() => {
	const scope = document.querySelector(%s) || document;
	const find = labels => labels.map(l => scope.querySelector('svg[aria-label="' + l + '"]')).find(Boolean);
	if (find(%s)) return %s;
	const icon = find(%s);
	if (!icon) return %s;
	(icon.closest('button, [role="button"]') || icon).click();
	return %s;
})()`, jsString(scope), jsString(unlikeLabels), jsString(likeAlready),
		jsString(likeLabels), jsString(likeMissing), jsString(likeClicked))
}

// clickSelectorScript clicks the first visible element matching selector.
func clickSelectorScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = Array.from(document.querySelectorAll(%s)).find(e => e.offsetParent !== null);
	if (!el) return false;
	(el.closest('button, [role="button"]') || el).click();
	return true;
})()`, jsString(selector))
}

// clickTextScript clicks the first button whose text is one of labels.
func clickTextScript(labels []string) string {
	return fmt.Sprintf(`(() => {
	const labels = %s;
	const el = Array.from(document.querySelectorAll('button, [role="button"]'))
		.find(e => labels.includes(e.textContent.trim()));
	if (!el) return false;
	el.click();
	return true;
})()`, jsString(labels))
}

// pickUserScript selects username in the new message search results.
func pickUserScript(username string) string {
	return fmt.Sprintf(`(() => {
	const name = %s;
	const span = Array.from(document.querySelectorAll('div[role="dialog"] span'))
		.find(s => s.textContent.trim().toLowerCase() === name);
	if (!span) return false;
	(span.closest('[role="button"]') || span).click();
	return true;
})()`, jsString(strings.ToLower(username)))
}

// existsScript reports whether selector matches anything.
func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
}

func profileURL(username string) string {
	return baseURL + "/" + url.PathEscape(username) + "/"
}

// postLinks returns up to count distinct post URLs from hrefs, keeping their order.
func postLinks(hrefs []string, count int) []string {
	if count <= 0 {
		return nil
	}
	seen := make(map[string]bool, len(hrefs))
	var out []string
	for _, h := range hrefs {
		if !strings.Contains(h, "/p/") {
			continue
		}
		if strings.HasPrefix(h, "/") {
			h = baseURL + h
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
		if len(out) == count {
			break
		}
	}
	return out
}

type loginState int

const (
	loginPending loginState = iota
	loginDone
	loginChallenge
)

// loginStateOf classifies the page reached after submitting the login form.
func loginStateOf(location string) loginState {
	u, err := url.Parse(location)
	if err != nil || !strings.HasSuffix(u.Hostname(), "instagram.com") {
		return loginPending
	}
	switch {
	case strings.HasPrefix(u.Path, "/challenge"), strings.HasPrefix(u.Path, "/accounts/suspended"):
		return loginChallenge
	case strings.HasPrefix(u.Path, "/accounts/login"):
		return loginPending
	default:
		return loginDone
	}
}

// storyOpened reports whether location is the story viewer.
func storyOpened(location string) bool {
	u, err := url.Parse(location)
	return err == nil && strings.HasPrefix(u.Path, "/stories/")
}
