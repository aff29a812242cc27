package httpclient

import (
	"fmt"
	"net/url"
	"strings"
)

// Route is a path relative to the client's base URL, built from ordered
// components, plus query values. Each component is escaped on its own, so
// a component may contain '/' or '?' without changing the path structure.
// Routes are values; methods return modified copies.
type Route struct {
	components []string
	query      url.Values
}

// NewRoute creates a route from path components.
//
//	NewRoute("posts", "42", "comments") // -> /posts/42/comments
func NewRoute(components ...string) Route {
	return Route{components: append([]string(nil), components...)}
}

// Append returns a copy of r with more components.
func (r Route) Append(components ...string) Route {
	out := r.clone()
	out.components = append(out.components, components...)
	return out
}

// WithQuery returns a copy of r with key=value added to its query.
func (r Route) WithQuery(key, value string) Route {
	out := r.clone()
	if out.query == nil {
		out.query = url.Values{}
	}
	out.query.Add(key, value)
	return out
}

func (r Route) clone() Route {
	out := Route{components: append([]string(nil), r.components...)}
	if r.query != nil {
		out.query = make(url.Values, len(r.query))
		for k, v := range r.query {
			out.query[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Components returns the path components.
func (r Route) Components() []string { return append([]string(nil), r.components...) }

// Query returns a copy of the route's query values.
func (r Route) Query() url.Values { return r.clone().query }

// Path returns the escaped path, "" for an empty route.
func (r Route) Path() string {
	var b strings.Builder
	for _, c := range r.components {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(c))
	}
	return b.String()
}

// Validate reports an empty component.
func (r Route) Validate() error {
	for i, c := range r.components {
		if c == "" {
			return fmt.Errorf("route component %d is empty", i)
		}
	}
	return nil
}

func (r Route) String() string {
	p := r.Path()
	if p == "" {
		p = "/"
	}
	if len(r.query) > 0 {
		p += "?" + r.query.Encode()
	}
	return p
}

// resolve joins r onto base and merges query values: base first, then the
// route, then extra (later wins per key).
func (r Route) resolve(base *url.URL, extra map[string]string) (*url.URL, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	u := *base
	escaped := strings.TrimRight(base.EscapedPath(), "/") + r.Path()
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, err
	}
	u.Path = path
	u.RawPath = escaped

	q := base.Query()
	for k, v := range r.query {
		q[k] = append([]string(nil), v...)
	}
	for k, v := range extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return &u, nil
}
