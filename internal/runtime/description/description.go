// Package description models the declarative api description that drives
// both sides of a call: which operations exist, the fields they carry,
// where the service lives, and how faults may cross the wire. A
// description is parsed and validated once, then treated as immutable.
package description

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

// OperationPlaceholder marks where the operation name is substituted into
// an endpoint pattern. Every pattern carries it exactly once.
const OperationPlaceholder = "{operation}"

// versionPlaceholder is replaced with the api version when deriving the
// client format and the server matcher.
const versionPlaceholder = "{version}"

var nameRE = regexp.MustCompile(`^[A-Za-z]\w*$`)

// ValidateName enforces the identifier grammar shared by api and
// operation names: a leading letter followed by word characters.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid name: %q", name)
	}
	return nil
}

// Endpoint locates the service and shapes its call paths.
type Endpoint struct {
	Scheme  string
	Host    string
	Port    int
	Pattern string

	// Metadata holds endpoint keys the parser did not recognise.
	Metadata map[string]any
}

// Operation describes one remote-callable unit: its validated name and
// the ordered field lists requests and responses carry.
type Operation struct {
	Name    string
	Inputs  []string
	Outputs []string

	// Metadata preserves unrecognised operation keys verbatim.
	Metadata map[string]any
}

// API is the parsed description shared by services and clients. Instances
// are independent: defaults are deep-copied in, so mutating one API never
// leaks into the default template or a sibling.
type API struct {
	Name       string
	Version    string
	Endpoint   Endpoint
	Timeout    time.Duration
	Debug      bool
	Protocol   string
	Exceptions []string
	Operations map[string]*Operation

	// Metadata preserves unrecognised top-level keys verbatim.
	Metadata map[string]any

	clientOnce   sync.Once
	clientFormat string
	clientErr    error

	matcherOnce sync.Once
	matcher     *Matcher
	matcherErr  error
}

// DefaultTimeout bounds the client's outbound call when the description
// does not override it.
const DefaultTimeout = 5 * time.Second

// Default returns a fresh copy of the default description template.
func Default() map[string]any {
	return map[string]any{
		"version":  "0",
		"timeout":  DefaultTimeout,
		"debug":    false,
		"protocol": "json",
		"endpoint": map[string]any{
			"scheme":  "https",
			"host":    "localhost",
			"port":    8080,
			"pattern": "/api/{version}/{operation}",
		},
		"operations": []any{},
		"exceptions": []any{},
	}
}

// Validate checks the description invariants. All problems are reported
// together.
func (a *API) Validate() error {
	var errs []error

	if a.Name == "" {
		errs = append(errs, errors.New("name is required"))
	} else if err := ValidateName(a.Name); err != nil {
		errs = append(errs, err)
	}

	if a.Timeout < 0 {
		errs = append(errs, errors.New("timeout cannot be negative"))
	}
	if a.Protocol == "" {
		errs = append(errs, errors.New("protocol is required"))
	}

	if p := a.Endpoint.Pattern; p != "" {
		if n := strings.Count(p, OperationPlaceholder); n != 1 {
			errs = append(errs, fmt.Errorf("endpoint pattern must contain exactly one %s placeholder, found %d", OperationPlaceholder, n))
		}
	}

	for name, op := range a.Operations {
		if err := ValidateName(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if op.Name != name {
			errs = append(errs, fmt.Errorf("operation %q declared under key %q", op.Name, name))
		}
	}

	for _, name := range a.Exceptions {
		if err := ValidateName(name); err != nil {
			errs = append(errs, fmt.Errorf("exception whitelist: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Operation returns the named operation descriptor, or nil when the
// description does not declare it.
func (a *API) Operation(name string) *Operation {
	return a.Operations[name]
}

// Whitelisted reports whether faults of the given name may cross the wire
// with their identity intact.
func (a *API) Whitelisted(name string) bool {
	for _, allowed := range a.Exceptions {
		if allowed == name {
			return true
		}
	}
	return false
}

// ClientFormat derives the client-side URI format: scheme://host:port plus
// the pattern, with the version substituted and the operation placeholder
// left in place. The result is computed once and cached. Every endpoint
// part must be present.
func (a *API) ClientFormat() (string, error) {
	a.clientOnce.Do(func() {
		var missing []string
		if a.Endpoint.Scheme == "" {
			missing = append(missing, "scheme")
		}
		if a.Endpoint.Host == "" {
			missing = append(missing, "host")
		}
		if a.Endpoint.Port == 0 {
			missing = append(missing, "port")
		}
		if a.Endpoint.Pattern == "" {
			missing = append(missing, "pattern")
		}
		if len(missing) > 0 {
			a.clientErr = errspkg.NewDescriptionError(
				fmt.Errorf("endpoint missing %s", strings.Join(missing, ", ")))
			return
		}

		pattern := a.substituteVersion(a.Endpoint.Pattern)
		a.clientFormat = fmt.Sprintf("%s://%s:%d%s", a.Endpoint.Scheme, a.Endpoint.Host, a.Endpoint.Port, pattern)
	})
	return a.clientFormat, a.clientErr
}

// OperationURI substitutes an operation name into the client format.
func (a *API) OperationURI(operation string) (string, error) {
	format, err := a.ClientFormat()
	if err != nil {
		return "", err
	}
	return strings.Replace(format, OperationPlaceholder, operation, 1), nil
}

// Matcher derives the server-side path matcher from the endpoint pattern.
// The result is computed once and cached. Only the pattern is required.
func (a *API) Matcher() (*Matcher, error) {
	a.matcherOnce.Do(func() {
		if a.Endpoint.Pattern == "" {
			a.matcherErr = errspkg.NewDescriptionError(errors.New("endpoint missing pattern"))
			return
		}

		pattern := a.substituteVersion(a.Endpoint.Pattern)
		parts := strings.SplitN(pattern, OperationPlaceholder, 2)
		if len(parts) != 2 {
			a.matcherErr = errspkg.NewDescriptionError(
				fmt.Errorf("endpoint pattern missing %s placeholder", OperationPlaceholder))
			return
		}

		// Trailing slashes are tolerated, anything else must match exactly.
		expr := "^" + regexp.QuoteMeta(parts[0]) + `(?P<operation>[^/]+)` + regexp.QuoteMeta(parts[1]) + "/?$"
		re, err := regexp.Compile(expr)
		if err != nil {
			a.matcherErr = errspkg.NewDescriptionError(err)
			return
		}
		a.matcher = &Matcher{re: re}
	})
	return a.matcher, a.matcherErr
}

func (a *API) substituteVersion(pattern string) string {
	return strings.ReplaceAll(pattern, versionPlaceholder, a.Version)
}

// Matcher extracts operation names from inbound request paths.
type Matcher struct {
	re *regexp.Regexp
}

// Operation returns the operation segment captured from path, and whether
// the path matched the endpoint pattern at all.
func (m *Matcher) Operation(path string) (string, bool) {
	match := m.re.FindStringSubmatch(path)
	if match == nil {
		return "", false
	}
	for i, name := range m.re.SubexpNames() {
		if name == "operation" {
			return match[i], true
		}
	}
	return "", false
}
