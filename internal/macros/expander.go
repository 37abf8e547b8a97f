package macros

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MacroExpander expands {MACRO} placeholders in tracking URLs before they are fired.
type MacroExpander struct {
	logger       *zap.Logger
	expansions   map[string]ExpansionFunc
	expansionsMu sync.RWMutex
	strictMode   bool // If true, any macro expansion failure fails the whole URL
}

// ExpansionFunc defines the signature for macro expansion functions
type ExpansionFunc func(ctx *ExpansionContext) (string, error)

// ExpansionContext contains all data available for macro expansion
type ExpansionContext struct {
	AdID       string
	CreativeID string
	CampaignID string
	// EventType is the custom event being reported, empty for impressions and clicks.
	EventType string
	Timestamp time.Time

	// CustomParams back the {CUSTOM.key} macro.
	CustomParams map[string]string
}

// NewMacroExpander creates a lenient macro expander with the default macros.
func NewMacroExpander(logger *zap.Logger) *MacroExpander {
	return NewMacroExpanderWithMode(logger, false)
}

// NewMacroExpanderWithMode creates a new macro expander with configurable strict/lenient mode
func NewMacroExpanderWithMode(logger *zap.Logger, strictMode bool) *MacroExpander {
	if logger == nil {
		logger = zap.NewNop()
	}
	expander := &MacroExpander{
		logger:     logger,
		expansions: make(map[string]ExpansionFunc),
		strictMode: strictMode,
	}
	expander.registerDefaultMacros()
	return expander
}

// SetStrictMode enables or disables strict macro expansion mode
func (e *MacroExpander) SetStrictMode(strict bool) {
	e.strictMode = strict
}

// ExpandURL expands all macros in the given URL. Unknown macros are left in place.
// In lenient mode a failing macro is logged and left unexpanded.
func (e *MacroExpander) ExpandURL(rawURL string, ctx *ExpansionContext) (string, error) {
	if rawURL == "" {
		return "", nil
	}
	if _, err := url.Parse(rawURL); err != nil {
		return rawURL, fmt.Errorf("parse url: %w", err)
	}
	var c ExpansionContext
	if ctx != nil {
		c = *ctx
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	ctx = &c

	expanded := e.expandCustomParams(rawURL, ctx)

	expanded, found, err := e.expandStandardMacros(expanded, ctx)
	if err != nil {
		if e.strictMode {
			return "", err
		}
		e.logger.Warn("Macro expansion completed with errors, continuing with partial expansion",
			zap.String("original_url", rawURL),
			zap.String("partial_url", expanded),
			zap.Error(err))
	}

	if found > 0 {
		e.logger.Debug("Expanded macros in URL",
			zap.String("original_url", rawURL),
			zap.String("expanded_url", expanded),
			zap.Int("macros_found", found))
	}
	return expanded, nil
}

// expandStandardMacros replaces every registered macro present in rawURL in one pass.
func (e *MacroExpander) expandStandardMacros(rawURL string, ctx *ExpansionContext) (string, int, error) {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	var replacements []string
	var errs []string
	found := 0
	for macro, fn := range e.expansions {
		placeholder := "{" + macro + "}"
		if !strings.Contains(rawURL, placeholder) {
			continue
		}
		found++
		value, err := fn(ctx)
		if err != nil {
			if e.strictMode {
				return "", 0, fmt.Errorf("macro expansion failed in strict mode for macro '%s': %w", macro, err)
			}
			errs = append(errs, fmt.Sprintf("%s: %v", macro, err))
			continue
		}
		replacements = append(replacements, placeholder, url.QueryEscape(value))
	}

	out := rawURL
	if len(replacements) > 0 {
		out = strings.NewReplacer(replacements...).Replace(rawURL)
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return out, found, fmt.Errorf("macro expansion: %s", strings.Join(errs, "; "))
	}
	return out, found, nil
}

// RegisterMacro adds a custom macro expansion function
func (e *MacroExpander) RegisterMacro(name string, expansionFunc ExpansionFunc) error {
	if name == "" {
		return fmt.Errorf("macro name cannot be empty")
	}
	if strings.HasPrefix(name, "CUSTOM.") {
		return fmt.Errorf("macro name %q is reserved for custom parameters", name)
	}
	if expansionFunc == nil {
		return fmt.Errorf("expansion function cannot be nil")
	}

	e.expansionsMu.Lock()
	defer e.expansionsMu.Unlock()
	e.expansions[name] = expansionFunc
	return nil
}

// GetRegisteredMacros returns the sorted names of all registered macros
func (e *MacroExpander) GetRegisteredMacros() []string {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	names := make([]string, 0, len(e.expansions))
	for name := range e.expansions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *MacroExpander) registerDefaultMacros() {
	e.expansions["AD_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.AdID, nil
	}
	e.expansions["CREATIVE_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.CreativeID, nil
	}
	e.expansions["CAMPAIGN_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.CampaignID, nil
	}
	e.expansions["EVENT_TYPE"] = func(ctx *ExpansionContext) (string, error) {
		if ctx.EventType == "" {
			return "", fmt.Errorf("no event type in context")
		}
		return ctx.EventType, nil
	}

	e.expansions["TIMESTAMP"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatInt(ctx.Timestamp.Unix(), 10), nil
	}
	e.expansions["TIMESTAMP_MS"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatInt(ctx.Timestamp.UnixMilli(), 10), nil
	}
	e.expansions["ISO_TIMESTAMP"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.Timestamp.UTC().Format(time.RFC3339), nil
	}

	// cache busting
	random := func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatInt(time.Now().UnixNano(), 10), nil
	}
	e.expansions["RANDOM"] = random
	e.expansions["CACHEBUSTER"] = random
	e.expansions["UUID"] = func(ctx *ExpansionContext) (string, error) {
		return uuid.New().String(), nil
	}
}

// expandCustomParams expands {CUSTOM.key} patterns in the URL
func (e *MacroExpander) expandCustomParams(rawURL string, ctx *ExpansionContext) string {
	if len(ctx.CustomParams) == 0 {
		return rawURL
	}
	expanded := rawURL
	for key, value := range ctx.CustomParams {
		placeholder := "{CUSTOM." + key + "}"
		if strings.Contains(expanded, placeholder) {
			expanded = strings.ReplaceAll(expanded, placeholder, url.QueryEscape(value))
		}
	}
	return expanded
}

// ValidateURL returns the macros in rawURL that no expansion is registered for.
func (e *MacroExpander) ValidateURL(rawURL string) []string {
	var unsupported []string

	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	rest := rawURL
	for {
		start := strings.Index(rest, "{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			break
		}
		macro := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		if strings.HasPrefix(macro, "CUSTOM.") {
			continue
		}
		if _, ok := e.expansions[macro]; !ok {
			unsupported = append(unsupported, macro)
		}
	}
	return unsupported
}
