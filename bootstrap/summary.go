package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/bryce/component"
	"github.com/kbukum/bryce/credential"
)

// Summary displays what the application wired at startup.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a summary writing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display prints the components with their live health and the session's
// credential state.
func (s *Summary) Display(registry *component.Registry, creds *credential.Store) {
	w := s.out
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	var health map[string]component.Health
	var comps []component.Component
	if registry != nil {
		comps = registry.All()
		health = make(map[string]component.Health, len(comps))
		for _, h := range registry.HealthAll(context.Background()) {
			health[h.Name] = h
		}
	}

	if len(comps) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n")
	} else {
		fmt.Fprintf(w, "📦 Components\n")
		healthy := 0
		for i, c := range comps {
			prefix := "├──"
			if i == len(comps)-1 {
				prefix = "└──"
			}
			h := health[c.Name()]
			line := c.Name()
			if d, ok := c.(component.Describable); ok {
				desc := d.Describe()
				line = fmt.Sprintf("%s [%s] %s", desc.Name, desc.Type, desc.Details)
			}
			msg := ""
			if h.Message != "" {
				msg = fmt.Sprintf(" (%s)", h.Message)
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", prefix, healthStatusIcon(h.Status), strings.TrimSpace(line), h.Status, msg)
			if h.Status == component.StatusHealthy {
				healthy++
			}
		}
		fmt.Fprintf(w, "\n")
		if healthy == len(comps) {
			fmt.Fprintf(w, "✅ All components healthy (%d/%d)\n", healthy, len(comps))
		} else {
			fmt.Fprintf(w, "⚠️  Some components have issues (%d/%d healthy)\n", healthy, len(comps))
		}
	}

	if creds != nil {
		fmt.Fprintf(w, "\n🔑 Session\n")
		if a, ok := creds.Get(); ok {
			fmt.Fprintf(w, "   ├── credential: %s\n", a.Kind())
		} else {
			fmt.Fprintf(w, "   ├── credential: none\n")
		}
		ns := creds.Namespace()
		if ns == "" {
			ns = "memory only"
		}
		fmt.Fprintf(w, "   └── persistence: %s (%s)\n", ns, creds.BackendState())
	}
	fmt.Fprintf(w, "\n")
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
